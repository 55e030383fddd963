package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/mail"
	"github.com/spec-kit/case-service/internal/mailparse"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/storage"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// ErrMalformedMessage marks an inbound message missing the headers needed for correlation.
var ErrMalformedMessage = errors.New("malformed mailbox message")

// ReplyTarget is the derived recipient and threading for one outbound message. It is never stored.
type ReplyTarget struct {
	To         string   `json:"to"`
	Subject    string   `json:"subject"`
	InReplyTo  string   `json:"inReplyTo,omitempty"`
	References []string `json:"references"`
	ThreadID   string   `json:"threadId,omitempty"`
}

// SendEmailInput describes an admin-composed message.
type SendEmailInput struct {
	To            string
	Subject       string
	Body          string
	AttachProduct bool
	AttachReceipt bool
	NewThread     bool
}

// InboundOutcome summarizes what correlation did with one message.
type InboundOutcome struct {
	CaseID    string
	MatchedBy string
	Matched   bool
	Recorded  bool
	Advanced  bool
}

// ThreadCorrelator links mailbox messages to cases and derives threaded replies.
type ThreadCorrelator struct {
	cases      repository.CaseRepository
	stores     repository.StoreRepository
	transport  mail.Transport
	storage    storage.ObjectStorage
	machine    *StatusMachine
	dispatcher events.Dispatcher
	mailbox    string
	logger     *zap.Logger
	now        Clock
}

// CorrelatorDependencies bundles collaborators.
type CorrelatorDependencies struct {
	CaseRepo   repository.CaseRepository
	StoreRepo  repository.StoreRepository
	Transport  mail.Transport
	Storage    storage.ObjectStorage
	Machine    *StatusMachine
	Dispatcher events.Dispatcher
	Mailbox    string
	Logger     *zap.Logger
	Clock      Clock
}

// NewThreadCorrelator constructs the correlator.
func NewThreadCorrelator(deps CorrelatorDependencies) *ThreadCorrelator {
	t := &ThreadCorrelator{
		cases:      deps.CaseRepo,
		stores:     deps.StoreRepo,
		transport:  deps.Transport,
		storage:    deps.Storage,
		machine:    deps.Machine,
		dispatcher: deps.Dispatcher,
		mailbox:    strings.ToLower(strings.TrimSpace(deps.Mailbox)),
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.now == nil {
		t.now = systemClock
	}
	return t
}

// DeriveFromThread picks the counterparty and threading headers from a thread.
// It reports false when no usable recipient exists in the thread.
func DeriveFromThread(msgs []mail.RawMessage, mailbox string) (ReplyTarget, bool) {
	if len(msgs) == 0 {
		return ReplyTarget{}, false
	}
	mailbox = strings.ToLower(strings.TrimSpace(mailbox))
	sorted := sortByInternalDate(msgs)
	latest := sorted[len(sorted)-1]

	var target *mail.RawMessage
	for i := len(sorted) - 1; i >= 0; i-- {
		if !sorted[i].SentBy(mailbox) {
			target = &sorted[i]
			break
		}
	}

	var candidates []string
	if latest.SentBy(mailbox) {
		candidates = append(candidates, latest.Header("To"))
	}
	if target != nil {
		candidates = append(candidates, target.Header("From"))
	}
	candidates = append(candidates, latest.Header("From"))
	if target != nil {
		candidates = append(candidates, target.Header("To"))
	}
	candidates = append(candidates, latest.Header("To"))

	to := ""
	for _, candidate := range candidates {
		if addr := mailparse.ExtractAddress(candidate); addr != "" && addr != mailbox {
			to = addr
			break
		}
	}
	if to == "" {
		return ReplyTarget{}, false
	}

	source := latest
	if target != nil {
		source = *target
	}
	subject := ""
	for i := len(sorted) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(sorted[i].Header("Subject")); s != "" {
			subject = s
			break
		}
	}

	messageID := mailparse.NormalizeMessageID(source.Header("Message-ID"))
	return ReplyTarget{
		To:         to,
		Subject:    mailparse.NormalizeReplySubject(subject),
		InReplyTo:  messageID,
		References: mailparse.MergeReferences(mailparse.ParseReferences(source.Header("References")), messageID),
		ThreadID:   source.ThreadID,
	}, true
}

// DeriveReplyTarget resolves where a reply for c goes. An explicit subject wins over the derived one.
func (t *ThreadCorrelator) DeriveReplyTarget(ctx context.Context, c *domain.Case, subject string) (ReplyTarget, error) {
	subject = strings.TrimSpace(subject)
	if c.HasThread() {
		msgs, err := t.transport.FetchThread(ctx, *c.ThreadID)
		if err != nil {
			t.logger.Warn("thread fetch failed; falling back to store address",
				zap.String("case_id", c.ID), zap.String("thread_id", *c.ThreadID), zap.Error(err))
		} else if target, ok := DeriveFromThread(msgs, t.mailbox); ok {
			if subject != "" {
				target.Subject = subject
			}
			target.ThreadID = *c.ThreadID
			return target, nil
		}
	}
	return t.firstContactTarget(ctx, c, subject, "")
}

// PreviewReplyTarget derives the target for a stored case.
func (t *ThreadCorrelator) PreviewReplyTarget(ctx context.Context, caseID string) (ReplyTarget, error) {
	c, err := loadCase(ctx, t.cases, caseID)
	if err != nil {
		return ReplyTarget{}, err
	}
	return t.DeriveReplyTarget(ctx, c, "")
}

func (t *ThreadCorrelator) firstContactTarget(ctx context.Context, c *domain.Case, subject, explicitTo string) (ReplyTarget, error) {
	to := mailparse.ExtractAddress(explicitTo)
	if to == "" {
		var err error
		if to, err = t.storeRecipient(ctx, c); err != nil {
			return ReplyTarget{}, err
		}
	}
	if subject == "" {
		subject = "Complaint regarding " + c.DisplayLabel()
	}
	return ReplyTarget{
		To:         to,
		Subject:    mailparse.EnsureCaseToken(subject, c.ID),
		References: []string{},
	}, nil
}

func (t *ThreadCorrelator) storeRecipient(ctx context.Context, c *domain.Case) (string, error) {
	unresolved := apperrors.NewRecipientUnresolved("could not resolve store email for this case", map[string]any{
		"case_id": c.ID,
		"store":   c.Store,
	})
	if t.stores == nil || strings.TrimSpace(c.Store) == "" {
		return "", unresolved
	}

	store, err := t.stores.GetByStoreID(ctx, c.Store)
	if errors.Is(err, repository.ErrNotFound) {
		store, err = t.stores.GetByName(ctx, c.Store)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", unresolved
		}
		return "", err
	}
	addr := mailparse.ExtractAddress(store.Email)
	if addr == "" || addr == t.mailbox {
		return "", unresolved
	}
	return addr, nil
}

// SendCaseEmail sends an admin message for a case and records it. Nothing is stored if the send fails.
func (t *ThreadCorrelator) SendCaseEmail(ctx context.Context, identity domain.Identity, caseID string, input SendEmailInput) (*domain.Case, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewValidationError("body is required", map[string]any{"body": "required"})
	}
	c, err := loadCase(ctx, t.cases, caseID)
	if err != nil {
		return nil, err
	}

	var target ReplyTarget
	if input.NewThread || !c.HasThread() {
		target, err = t.firstContactTarget(ctx, c, strings.TrimSpace(input.Subject), input.To)
	} else {
		target, err = t.DeriveReplyTarget(ctx, c, input.Subject)
		if err == nil {
			if to := mailparse.ExtractAddress(input.To); to != "" {
				target.To = to
			}
		}
	}
	if err != nil {
		return nil, err
	}

	msg := mail.OutgoingMessage{
		To:          target.To,
		Subject:     target.Subject,
		Body:        input.Body,
		ThreadID:    target.ThreadID,
		InReplyTo:   target.InReplyTo,
		References:  target.References,
		Attachments: t.collectAttachments(ctx, c, input.AttachProduct, input.AttachReceipt),
	}
	res, err := t.transport.Send(ctx, msg)
	if err != nil {
		return nil, apperrors.NewTransportFailure("mail send failed", err)
	}
	t.logger.Info("case email sent",
		zap.String("case_id", c.ID),
		zap.String("to", target.To),
		zap.String("message_id", res.MessageID),
		zap.String("thread_id", res.ThreadID),
	)

	return t.recordOutbound(ctx, caseID, identity.Actor(), msg, res)
}

func (t *ThreadCorrelator) recordOutbound(ctx context.Context, caseID, actor string, msg mail.OutgoingMessage, res mail.SendResult) (*domain.Case, error) {
	c, err := loadCase(ctx, t.cases, caseID)
	if err != nil {
		return nil, err
	}
	threadID := res.ThreadID
	if threadID == "" {
		threadID = msg.ThreadID
	}
	c.Emails.Append(domain.EmailEntry{
		Subject:   msg.Subject,
		Body:      msg.Body,
		To:        msg.To,
		From:      t.mailbox,
		SentAt:    t.now(),
		ThreadID:  threadID,
		MessageID: res.MessageID,
	})
	c.AdoptThread(threadID)
	if err := t.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	t.publishEmail(ctx, c.ID, actor, events.EmailOutbound, msg.Subject, msg.To, res.MessageID, threadID)
	return c, nil
}

func (t *ThreadCorrelator) collectAttachments(ctx context.Context, c *domain.Case, product, receipt bool) []mail.Attachment {
	if t.storage == nil {
		return nil
	}
	var out []mail.Attachment
	add := func(url *string, imageIndex int, fallback string) {
		src := domain.StringValue(url)
		if src == "" && len(c.Images) > imageIndex {
			src = c.Images[imageIndex]
		}
		if src == "" {
			return
		}
		obj, err := t.storage.Download(ctx, src)
		if err != nil {
			t.logger.Warn("attachment fetch failed", zap.String("case_id", c.ID), zap.String("url", src), zap.Error(err))
			return
		}
		name := obj.Filename
		if name == "" {
			name = fallback
		}
		out = append(out, mail.Attachment{Filename: name, ContentType: obj.ContentType, Data: obj.Data})
	}
	if product {
		add(c.ProductImageURL, 0, "product.jpg")
	}
	if receipt {
		add(c.ReceiptImageURL, 1, "receipt.jpg")
	}
	return out
}

// GetThread returns the case's mailbox thread, oldest first.
func (t *ThreadCorrelator) GetThread(ctx context.Context, caseID string) ([]mail.RawMessage, error) {
	c, err := loadCase(ctx, t.cases, caseID)
	if err != nil {
		return nil, err
	}
	if !c.HasThread() {
		return nil, apperrors.NewValidationError("case has no mail thread", map[string]any{"case_id": caseID})
	}
	msgs, err := t.transport.FetchThread(ctx, *c.ThreadID)
	if err != nil {
		return nil, apperrors.NewTransportFailure("thread fetch failed", err)
	}
	return sortByInternalDate(msgs), nil
}

// MatchInbound correlates one mailbox message. Unmatched messages return a zero outcome and no error.
// The subject token takes priority over the sender address.
func (t *ThreadCorrelator) MatchInbound(ctx context.Context, msg mail.RawMessage) (InboundOutcome, error) {
	if msg.ID == "" || strings.TrimSpace(msg.Header("From")) == "" || strings.TrimSpace(msg.Header("To")) == "" {
		return InboundOutcome{}, ErrMalformedMessage
	}

	c, matchedBy, err := t.resolveInbound(ctx, msg)
	if err != nil || c == nil {
		return InboundOutcome{}, err
	}
	outcome, err := t.applyInbound(ctx, c, msg)
	outcome.MatchedBy = matchedBy
	return outcome, err
}

func (t *ThreadCorrelator) resolveInbound(ctx context.Context, msg mail.RawMessage) (*domain.Case, string, error) {
	if id, ok := mailparse.FindCaseToken(msg.Header("Subject")); ok {
		c, err := t.cases.GetByID(ctx, id)
		if err == nil {
			return c, "subject", nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", err
		}
	}

	from := mailparse.ExtractAddress(msg.Header("From"))
	if from == "" || from == t.mailbox {
		return nil, "", nil
	}
	c, err := t.cases.FindByOwnerEmail(ctx, from)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return c, "sender", nil
}

// AdvanceFromThread checks the latest incoming message of a case's thread and applies it when new.
func (t *ThreadCorrelator) AdvanceFromThread(ctx context.Context, c *domain.Case) (InboundOutcome, error) {
	outcome := InboundOutcome{CaseID: c.ID, MatchedBy: "thread"}
	if !c.HasThread() {
		return outcome, nil
	}
	msgs, err := t.transport.FetchThread(ctx, *c.ThreadID)
	if err != nil {
		return outcome, err
	}

	sorted := sortByInternalDate(msgs)
	for i := len(sorted) - 1; i >= 0; i-- {
		msg := sorted[i]
		if msg.SentBy(t.mailbox) {
			continue
		}
		if !c.IsNewReply(msg.InternalDate, msg.ID) {
			outcome.Matched = true
			return outcome, nil
		}
		applied, err := t.applyInbound(ctx, c, msg)
		applied.MatchedBy = outcome.MatchedBy
		return applied, err
	}
	return outcome, nil
}

func (t *ThreadCorrelator) applyInbound(ctx context.Context, c *domain.Case, msg mail.RawMessage) (InboundOutcome, error) {
	outcome := InboundOutcome{CaseID: c.ID, Matched: true}

	subject := msg.Header("Subject")
	to := mailparse.ExtractAddress(msg.Header("To"))
	from := mailparse.ExtractAddress(msg.Header("From"))
	if !c.HasEmailMessage(msg.ID) {
		c.Emails.Append(domain.EmailEntry{
			Subject:   subject,
			Body:      "",
			To:        to,
			From:      from,
			SentAt:    mailparse.ParseDate(msg.Header("Date"), t.now()),
			ThreadID:  msg.ThreadID,
			MessageID: msg.ID,
		})
		outcome.Recorded = true
	}
	adopted := c.AdoptThread(msg.ThreadID)

	var change StatusChange
	if !msg.SentBy(t.mailbox) && c.IsNewReply(msg.InternalDate, msg.ID) {
		c.RecordReply(msg.InternalDate, msg.ID)
		var err error
		change, err = t.machine.Apply(c, domain.CaseStatusInReview, ActorMailSync, "reply received")
		if err != nil {
			return outcome, err
		}
		outcome.Advanced = true
	}

	if !outcome.Recorded && !adopted && !outcome.Advanced {
		return outcome, nil
	}
	if err := t.machine.Save(ctx, c, change); err != nil {
		return outcome, err
	}
	if outcome.Recorded {
		t.publishEmail(ctx, c.ID, ActorMailSync, events.EmailInbound, subject, to, msg.ID, msg.ThreadID)
	}
	return outcome, nil
}

func (t *ThreadCorrelator) publishEmail(ctx context.Context, caseID, actor string, dir events.EmailDirection, subject, to, messageID, threadID string) {
	if t.dispatcher == nil {
		return
	}
	_ = t.dispatcher.Publish(ctx, events.NewEvent(events.EventCaseEmailRecorded, caseID, actor, events.CaseEmailRecordedPayload{
		Direction: dir,
		MessageID: messageID,
		ThreadID:  threadID,
		Subject:   subject,
		To:        to,
	}))
}

func sortByInternalDate(msgs []mail.RawMessage) []mail.RawMessage {
	sorted := append([]mail.RawMessage(nil), msgs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InternalDate.Before(sorted[j].InternalDate)
	})
	return sorted
}
