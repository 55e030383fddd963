package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/mail"
	"github.com/spec-kit/case-service/internal/mailparse"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/storage"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

const infoRequestSubject = "Need more information for your case"

// InfoExchangeTracker runs the request/response sub-workflow with the case owner.
type InfoExchangeTracker struct {
	cases      repository.CaseRepository
	transport  mail.Transport
	storage    storage.ObjectStorage
	machine    *StatusMachine
	dispatcher events.Dispatcher
	mailbox    string
	logger     *zap.Logger
	now        Clock
}

// InfoExchangeDependencies bundles collaborators.
type InfoExchangeDependencies struct {
	CaseRepo   repository.CaseRepository
	Transport  mail.Transport
	Storage    storage.ObjectStorage
	Machine    *StatusMachine
	Dispatcher events.Dispatcher
	Mailbox    string
	Logger     *zap.Logger
	Clock      Clock
}

// RequestInfoInput is what the admin asks for.
type RequestInfoInput struct {
	Message       string
	RequiresFile  bool
	RequiresYesNo bool
}

// SubmitResponseInput is the owner's answer. RequestID may be empty.
type SubmitResponseInput struct {
	RequestID string
	Answer    string
	File      *FileUpload
}

// PendingInfoRequest annotates a PENDING request with whether it was already answered by id.
type PendingInfoRequest struct {
	domain.InfoRequest
	HasResponse bool `json:"hasResponse"`
}

// NewInfoExchangeTracker constructs the tracker.
func NewInfoExchangeTracker(deps InfoExchangeDependencies) *InfoExchangeTracker {
	t := &InfoExchangeTracker{
		cases:      deps.CaseRepo,
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

// RequestInfo mails the owner, supersedes any pending request, records the new one and moves the case to NEED_INFO.
func (t *InfoExchangeTracker) RequestInfo(ctx context.Context, identity domain.Identity, caseID string, input RequestInfoInput) (*domain.Case, *domain.InfoRequest, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, nil, apperrors.NewValidationError("message is required", map[string]any{"message": "required"})
	}
	c, err := loadCase(ctx, t.cases, caseID)
	if err != nil {
		return nil, nil, err
	}
	owner := domain.StringValue(c.OwnerEmail)
	if owner == "" {
		return nil, nil, apperrors.NewRecipientUnresolved("case owner has no email address", map[string]any{"case_id": c.ID})
	}

	msg := mail.OutgoingMessage{
		To:      owner,
		Subject: mailparse.EnsureCaseToken(infoRequestSubject, c.ID),
		Body:    infoRequestBody(c, input, message),
	}
	res, err := t.transport.Send(ctx, msg)
	if err != nil {
		return nil, nil, apperrors.NewTransportFailure("mail send failed", err)
	}

	c, err = loadCase(ctx, t.cases, caseID)
	if err != nil {
		return nil, nil, err
	}
	now := t.now()
	superseded := c.SupersedePending()
	req := domain.InfoRequest{
		ID:            uuid.NewString(),
		Message:       message,
		RequiresFile:  input.RequiresFile,
		RequiresYesNo: input.RequiresYesNo,
		RequestedAt:   now,
		RequestedBy:   identity.Actor(),
		Status:        domain.InfoRequestPending,
	}
	c.InfoRequestHistory.Append(req)
	c.Emails.Append(domain.EmailEntry{
		Subject:   msg.Subject,
		Body:      msg.Body,
		To:        owner,
		From:      t.mailbox,
		SentAt:    now,
		ThreadID:  res.ThreadID,
		MessageID: res.MessageID,
	})

	change, err := t.machine.Apply(c, domain.CaseStatusNeedInfo, identity.Actor(), message)
	if err != nil {
		return nil, nil, err
	}
	if err := t.machine.Save(ctx, c, change); err != nil {
		return nil, nil, err
	}

	t.publish(ctx, events.NewEvent(events.EventCaseInfoRequested, c.ID, identity.Actor(), events.CaseInfoRequestedPayload{
		RequestID:     req.ID,
		RequiresFile:  req.RequiresFile,
		RequiresYesNo: req.RequiresYesNo,
		Superseded:    superseded,
	}))
	return c, &req, nil
}

func infoRequestBody(c *domain.Case, input RequestInfoInput, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "We need more information about your case \"%s\".\n\n%s\n", c.DisplayLabel(), message)
	if input.RequiresFile {
		b.WriteString("\nPlease attach the requested file in the app.\n")
	}
	if input.RequiresYesNo {
		b.WriteString("\nPlease answer yes or no.\n")
	}
	return b.String()
}

// SubmitResponse records the owner's answer and moves the case to IN_REVIEW.
// Without a request id the most recent PENDING request is answered.
func (t *InfoExchangeTracker) SubmitResponse(ctx context.Context, identity domain.Identity, caseID string, input SubmitResponseInput) (*domain.Case, *domain.InfoResponse, error) {
	c, err := loadCaseFor(ctx, t.cases, identity, caseID)
	if err != nil {
		return nil, nil, err
	}
	answer := strings.TrimSpace(input.Answer)
	if answer == "" && input.File == nil {
		return nil, nil, apperrors.NewValidationError("answer or file is required", nil)
	}

	var req *domain.InfoRequest
	if id := strings.TrimSpace(input.RequestID); id != "" {
		found, ok := c.FindRequest(id)
		if !ok {
			return nil, nil, apperrors.NewInvalidRequestID(id)
		}
		req = found
	} else {
		pending, ok := c.LatestPendingRequest()
		if !ok {
			return nil, nil, apperrors.NewNoPendingRequest()
		}
		req = pending
	}

	resp := domain.InfoResponse{
		ID:          uuid.NewString(),
		RequestID:   req.ID,
		Answer:      answer,
		SubmittedAt: t.now(),
		SubmittedBy: identity.Actor(),
	}
	if input.File != nil {
		if t.storage == nil {
			return nil, nil, apperrors.NewValidationError("file uploads are not enabled", nil)
		}
		name := safeFilename(input.File.Filename, "upload")
		url, err := t.storage.Upload(ctx, uploadKey("claimy", c.OwnerID, "info-responses", resp.ID, name), input.File.ContentType, input.File.Content)
		if err != nil {
			return nil, nil, apperrors.NewInternalError(err)
		}
		resp.FileURL = url
		resp.FileName = name
		resp.FileType = input.File.ContentType
	}

	c.InfoResponseHistory.Append(resp)
	if req.Status == domain.InfoRequestPending {
		req.Status = domain.InfoRequestAnswered
	}
	change, err := t.machine.Apply(c, domain.CaseStatusInReview, identity.Actor(), "user responded")
	if err != nil {
		return nil, nil, err
	}
	if err := t.machine.Save(ctx, c, change); err != nil {
		return nil, nil, err
	}

	t.publish(ctx, events.NewEvent(events.EventCaseInfoResponded, c.ID, identity.Actor(), events.CaseInfoRespondedPayload{
		RequestID:  resp.RequestID,
		ResponseID: resp.ID,
		HasFile:    resp.FileURL != "",
	}))
	return c, &resp, nil
}

// ListPendingRequests returns the PENDING requests of a case visible to identity.
func (t *InfoExchangeTracker) ListPendingRequests(ctx context.Context, identity domain.Identity, caseID string) ([]PendingInfoRequest, error) {
	c, err := loadCaseFor(ctx, t.cases, identity, caseID)
	if err != nil {
		return nil, err
	}
	out := []PendingInfoRequest{}
	for _, req := range c.InfoRequestHistory {
		if req.Status != domain.InfoRequestPending {
			continue
		}
		out = append(out, PendingInfoRequest{InfoRequest: req, HasResponse: c.HasResponseFor(req.ID)})
	}
	return out, nil
}

func (t *InfoExchangeTracker) publish(ctx context.Context, event events.Event) {
	if t.dispatcher == nil {
		return
	}
	_ = t.dispatcher.Publish(ctx, event)
}
