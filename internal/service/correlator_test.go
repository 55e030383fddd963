package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/mail"
	"github.com/spec-kit/case-service/internal/mailparse"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

var day2 = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

func withStore(h *harness) {
	h.stores.Put(domain.Store{StoreID: "s-1", Name: "ACME", Email: "Claims Desk <claims@acme.test>"})
}

func TestDeriveFromThreadPrefersOwnLatestRecipient(t *testing.T) {
	msgs := []mail.RawMessage{
		rawMessage("m2", "t1", day2.Add(time.Hour), map[string]string{
			"From":       testMailbox,
			"To":         "claims@acme.test",
			"Subject":    "Re: Complaint [CASE-abc]",
			"Message-ID": "<m2@claimy>",
			"References": "<m0@claimy> <m1@acme>",
		}, mail.LabelSent),
		rawMessage("m1", "t1", day2, map[string]string{
			"From":       "Acme Claims <Claims@Acme.test>",
			"To":         testMailbox,
			"Subject":    "RE: re: Complaint [CASE-abc]",
			"Message-ID": "<m1@acme>",
			"References": "<m0@claimy>",
		}),
	}

	target, ok := DeriveFromThread(msgs, testMailbox)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.To != "claims@acme.test" {
		t.Fatalf("to = %q", target.To)
	}
	if target.Subject != "Re: Complaint [CASE-abc]" {
		t.Fatalf("subject = %q", target.Subject)
	}
	if target.InReplyTo != "m1@acme" {
		t.Fatalf("in-reply-to = %q", target.InReplyTo)
	}
	if want := []string{"m0@claimy", "m1@acme"}; !reflect.DeepEqual(target.References, want) {
		t.Fatalf("references = %v, want %v", target.References, want)
	}
}

func TestDeriveFromThreadOnlyOwnMessages(t *testing.T) {
	msgs := []mail.RawMessage{
		rawMessage("m1", "t1", day2, map[string]string{"From": testMailbox, "To": testMailbox}),
	}
	if _, ok := DeriveFromThread(msgs, testMailbox); ok {
		t.Fatal("a thread with only the mailbox itself has no recipient")
	}
	if _, ok := DeriveFromThread(nil, testMailbox); ok {
		t.Fatal("empty thread has no recipient")
	}
}

func TestDeriveFromThreadSkipsGroupRecipients(t *testing.T) {
	msgs := []mail.RawMessage{
		rawMessage("m1", "t1", day2, map[string]string{
			"From": "Acme Claims <claims@acme.test>",
			"To":   testMailbox,
		}),
		rawMessage("m2", "t1", day2.Add(time.Hour), map[string]string{
			"From": testMailbox,
			"To":   "undisclosed-recipients:;",
		}, mail.LabelSent),
	}
	target, ok := DeriveFromThread(msgs, testMailbox)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.To != "claims@acme.test" {
		t.Fatalf("to = %q", target.To)
	}
}

func TestFirstContactResolvesStoreByName(t *testing.T) {
	h := newHarness(t)
	withStore(h)
	c := h.seedCase(t)

	got, err := h.correlator.SendCaseEmail(context.Background(), adminIdentity, c.ID, SendEmailInput{Body: "Please look into this."})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := h.transport.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages", len(sent))
	}
	if sent[0].To != "claims@acme.test" || sent[0].ThreadID != "" {
		t.Fatalf("unexpected first contact %+v", sent[0])
	}
	if want := "Complaint regarding Kettle [" + mailparse.CaseToken(c.ID) + "]"; sent[0].Subject != want {
		t.Fatalf("subject = %q, want %q", sent[0].Subject, want)
	}

	stored := h.reload(t, got.ID)
	if domain.StringValue(stored.ThreadID) != "thread-1" {
		t.Fatalf("thread not adopted: %q", domain.StringValue(stored.ThreadID))
	}
	entry, ok := stored.Emails.Last()
	if !ok || entry.MessageID != "sent-1" || entry.From != testMailbox || entry.ThreadID != "thread-1" {
		t.Fatalf("email entry %+v", entry)
	}
	if stored.Status != domain.CaseStatusPending || len(h.notifications.All()) != 0 {
		t.Fatal("sending mail must not change status")
	}
}

func TestFirstContactWithoutStoreIsUnresolved(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)

	_, err := h.correlator.SendCaseEmail(context.Background(), adminIdentity, c.ID, SendEmailInput{Body: "hello"})
	if !apperrors.HasCode(err, apperrors.CodeRecipientUnresolved) {
		t.Fatalf("expected RecipientUnresolved, got %v", err)
	}
	if len(h.transport.Sent()) != 0 || h.reload(t, c.ID).Emails.Len() != 0 {
		t.Fatal("nothing should be sent or recorded")
	}
}

func TestSendFailureRecordsNothing(t *testing.T) {
	h := newHarness(t)
	withStore(h)
	h.transport.sendErr = errors.New("smtp down")
	c := h.seedCase(t)

	_, err := h.correlator.SendCaseEmail(context.Background(), adminIdentity, c.ID, SendEmailInput{Body: "hello"})
	if !apperrors.HasCode(err, apperrors.CodeTransportFailure) {
		t.Fatalf("expected TransportFailure, got %v", err)
	}
	stored := h.reload(t, c.ID)
	if stored.Emails.Len() != 0 || stored.HasThread() {
		t.Fatal("failed send must not be recorded")
	}
}

func TestThreadedReplyUsesDerivedHeaders(t *testing.T) {
	h := newHarness(t)
	withStore(h)
	c := h.seedCase(t)
	ctx := context.Background()
	if _, err := h.correlator.SendCaseEmail(ctx, adminIdentity, c.ID, SendEmailInput{Body: "first"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	subject := h.transport.Sent()[0].Subject
	h.transport.threads["thread-1"] = []mail.RawMessage{
		rawMessage("sent-1", "thread-1", day2, map[string]string{
			"From": testMailbox, "To": "claims@acme.test", "Subject": subject, "Message-ID": "<sent-1@claimy>",
		}, mail.LabelSent),
		rawMessage("r-1", "thread-1", day2.Add(time.Hour), map[string]string{
			"From": "claims@acme.test", "To": testMailbox, "Subject": "Re: " + subject,
			"Message-ID": "<r-1@acme>", "References": "<sent-1@claimy>",
		}),
	}

	if _, err := h.correlator.SendCaseEmail(ctx, adminIdentity, c.ID, SendEmailInput{Body: "second"}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	reply := h.transport.Sent()[1]
	if reply.ThreadID != "thread-1" || reply.To != "claims@acme.test" {
		t.Fatalf("reply routing %+v", reply)
	}
	if reply.Subject != "Re: "+subject || reply.InReplyTo != "r-1@acme" {
		t.Fatalf("reply headers %q %q", reply.Subject, reply.InReplyTo)
	}
	if want := []string{"sent-1@claimy", "r-1@acme"}; !reflect.DeepEqual(reply.References, want) {
		t.Fatalf("references %v", reply.References)
	}
	if h.reload(t, c.ID).Emails.Len() != 2 {
		t.Fatal("expected two outbound entries")
	}
}

func TestReplyFallsBackToStoreWhenThreadFetchFails(t *testing.T) {
	h := newHarness(t)
	withStore(h)
	c := h.seedCase(t)
	ctx := context.Background()
	if _, err := h.correlator.SendCaseEmail(ctx, adminIdentity, c.ID, SendEmailInput{Body: "first"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	h.transport.threadErr = errors.New("gmail 500")

	if _, err := h.correlator.SendCaseEmail(ctx, adminIdentity, c.ID, SendEmailInput{Body: "again"}); err != nil {
		t.Fatalf("fallback send: %v", err)
	}
	if got := h.transport.Sent()[1]; got.To != "claims@acme.test" {
		t.Fatalf("fallback recipient %q", got.To)
	}
	if domain.StringValue(h.reload(t, c.ID).ThreadID) != "thread-1" {
		t.Fatal("thread id must never be overwritten")
	}
}

func TestMatchInboundBySenderAdvancesOnce(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)
	ctx := context.Background()
	msg := rawMessage("in-1", "t-9", day2, map[string]string{
		"From": "Owner <OWNER@example.com>", "To": testMailbox, "Subject": "Re: my kettle",
		"Date": "Sun, 02 Jun 2024 10:00:00 +0000",
	})

	outcome, err := h.correlator.MatchInbound(ctx, msg)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !outcome.Matched || !outcome.Advanced || !outcome.Recorded || outcome.MatchedBy != "sender" || outcome.CaseID != c.ID {
		t.Fatalf("outcome %+v", outcome)
	}
	stored := h.reload(t, c.ID)
	if stored.Status != domain.CaseStatusInReview || domain.StringValue(stored.ThreadID) != "t-9" {
		t.Fatalf("case after reply: %s %q", stored.Status, domain.StringValue(stored.ThreadID))
	}
	last, _ := stored.StatusHistory.Last()
	if last.By != ActorMailSync || last.Note != "reply received" {
		t.Fatalf("history entry %+v", last)
	}
	entry, _ := stored.Emails.Last()
	if !entry.SentAt.Equal(day2) || entry.From != "owner@example.com" {
		t.Fatalf("inbound entry %+v", entry)
	}

	again, err := h.correlator.MatchInbound(ctx, msg)
	if err != nil || again.Advanced || again.Recorded {
		t.Fatalf("redelivery should be a no-op: %+v %v", again, err)
	}
	if h.reload(t, c.ID).StatusHistory.Len() != stored.StatusHistory.Len() {
		t.Fatal("redelivery appended history")
	}
	if len(h.notifications.All()) != 1 {
		t.Fatal("expected exactly one notification")
	}
}

func TestMatchInboundSubjectTokenWins(t *testing.T) {
	h := newHarness(t)
	first := h.seedCase(t)
	other, err := h.caseService.CreateCase(context.Background(), domain.Identity{SubjectID: "u2", Email: "other@example.com"},
		CaseCreateInput{Store: "Acme", Product: "Toaster", Description: "Burns toast"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := rawMessage("in-1", "t-9", day2, map[string]string{
		"From": "owner@example.com", "To": testMailbox, "Subject": "Re: toast [" + mailparse.CaseToken(other.ID) + "]",
	})
	outcome, err := h.correlator.MatchInbound(context.Background(), msg)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if outcome.CaseID != other.ID || outcome.MatchedBy != "subject" {
		t.Fatalf("outcome %+v", outcome)
	}
	if h.reload(t, first.ID).Status != domain.CaseStatusPending {
		t.Fatal("sender's own case must be untouched")
	}
}

func TestMatchInboundNeverOverwritesThread(t *testing.T) {
	h := newHarness(t)
	withStore(h)
	c := h.seedCase(t)
	ctx := context.Background()
	if _, err := h.correlator.SendCaseEmail(ctx, adminIdentity, c.ID, SendEmailInput{Body: "first"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg := rawMessage("in-1", "unrelated-thread", day2, map[string]string{
		"From": "claims@acme.test", "To": testMailbox, "Subject": "Re: [" + mailparse.CaseToken(c.ID) + "]",
	})
	if _, err := h.correlator.MatchInbound(ctx, msg); err != nil {
		t.Fatalf("match: %v", err)
	}
	if domain.StringValue(h.reload(t, c.ID).ThreadID) != "thread-1" {
		t.Fatal("thread id changed")
	}
}

func TestMatchInboundMalformedAndUnmatched(t *testing.T) {
	h := newHarness(t)
	h.seedCase(t)
	ctx := context.Background()

	noFrom := rawMessage("in-1", "t", day2, map[string]string{"To": testMailbox})
	if _, err := h.correlator.MatchInbound(ctx, noFrom); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected malformed error, got %v", err)
	}

	stranger := rawMessage("in-2", "t", day2, map[string]string{"From": "nobody@else.test", "To": testMailbox})
	outcome, err := h.correlator.MatchInbound(ctx, stranger)
	if err != nil || outcome.Matched {
		t.Fatalf("stranger should be unmatched: %+v %v", outcome, err)
	}
}

func TestGetThreadRequiresThread(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)
	if _, err := h.correlator.GetThread(context.Background(), c.ID); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendAttachesClientSuppliedImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = io.WriteString(w, "jpeg:"+r.URL.Path)
	}))
	defer srv.Close()

	h := newHarness(t)
	withStore(h)
	productURL := srv.URL + "/cdn/kettle.jpg"
	receiptURL := srv.URL + "/cdn/receipt.jpg"
	c, err := h.caseService.CreateCase(context.Background(), ownerIdentity, CaseCreateInput{
		Store:           "Acme",
		Product:         "Kettle",
		Description:     "Stopped heating",
		ProductImageURL: &productURL,
		ReceiptImageURL: &receiptURL,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = h.correlator.SendCaseEmail(context.Background(), adminIdentity, c.ID, SendEmailInput{
		Body:          "Photos attached.",
		AttachProduct: true,
		AttachReceipt: true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := h.transport.Sent()
	if len(sent) != 1 || len(sent[0].Attachments) != 2 {
		t.Fatalf("expected two attachments, got %+v", sent)
	}
	product, receipt := sent[0].Attachments[0], sent[0].Attachments[1]
	if product.Filename != "kettle.jpg" || string(product.Data) != "jpeg:/cdn/kettle.jpg" || product.ContentType != "image/jpeg" {
		t.Fatalf("product attachment %+v", product)
	}
	if receipt.Filename != "receipt.jpg" || string(receipt.Data) != "jpeg:/cdn/receipt.jpg" {
		t.Fatalf("receipt attachment %+v", receipt)
	}
}
