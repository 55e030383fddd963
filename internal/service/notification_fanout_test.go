package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

func registerOwner(t *testing.T, h *harness, token string) {
	t.Helper()
	user := &domain.User{ID: ownerIdentity.SubjectID, Email: ownerIdentity.Email, PasswordHash: "x"}
	if err := h.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if token != "" {
		if err := h.users.UpdateDeviceToken(context.Background(), user.ID, token); err != nil {
			t.Fatalf("device token: %v", err)
		}
	}
}

func TestFanoutPublishesAndPushes(t *testing.T) {
	h := newHarness(t)
	registerOwner(t, h, "device-1")
	c := h.seedCase(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := h.notificationSvc.Subscribe(ctx, ownerIdentity.SubjectID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := h.caseService.TransitionStatus(context.Background(), adminIdentity, c.ID, domain.CaseStatusInReview, ""); err != nil {
		t.Fatalf("transition: %v", err)
	}

	select {
	case ev := <-stream:
		if ev.CaseID != c.ID || ev.NewStatus != domain.CaseStatusInReview || ev.Case == nil {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Case.Product != "Kettle" || ev.Case.Status != domain.CaseStatusInReview {
			t.Fatalf("summary not denormalized: %+v", ev.Case)
		}
	case <-time.After(time.Second):
		t.Fatal("no live event delivered")
	}

	if len(h.push.sent) != 1 {
		t.Fatalf("push sends %d, want 1", len(h.push.sent))
	}
	msg := h.push.sent[0]
	if msg.Token != "device-1" || msg.Title != PushTitle || msg.Body != "Kettle is now In Review." {
		t.Fatalf("unexpected push %+v", msg)
	}
}

func TestPushFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t)
	registerOwner(t, h, "device-1")
	h.push.err = errors.New("fcm unavailable")
	c := h.seedCase(t)

	got, err := h.caseService.TransitionStatus(context.Background(), adminIdentity, c.ID, domain.CaseStatusRejected, "")
	if err != nil {
		t.Fatalf("transition failed because of push: %v", err)
	}
	if got.Status != domain.CaseStatusRejected {
		t.Fatalf("status %s", got.Status)
	}
	if len(h.notifications.All()) != 1 {
		t.Fatal("notification not persisted")
	}
	if h.metrics.Snapshot().PushFailures != 1 {
		t.Fatal("push failure not counted")
	}
}

func TestFanoutSkipsPushWithoutToken(t *testing.T) {
	h := newHarness(t)
	registerOwner(t, h, "")
	c := h.seedCase(t)
	if _, err := h.caseService.Approve(context.Background(), adminIdentity, c.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(h.push.sent) != 0 {
		t.Fatal("push sent without device token")
	}
}

func TestNotificationListAndMarkSeen(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)
	ctx := context.Background()
	for _, s := range []domain.CaseStatus{domain.CaseStatusInReview, domain.CaseStatusApproved} {
		if _, err := h.caseService.TransitionStatus(ctx, adminIdentity, c.ID, s, ""); err != nil {
			t.Fatalf("transition: %v", err)
		}
	}

	items, err := h.notificationSvc.ListUnseen(ctx, ownerIdentity.SubjectID)
	if err != nil || len(items) != 2 {
		t.Fatalf("list: %d %v", len(items), err)
	}
	if items[0].NewStatus != domain.CaseStatusApproved {
		t.Fatal("most recent notification should come first")
	}

	if err := h.notificationSvc.MarkSeen(ctx, "u2", items[0].ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("foreign mark seen: %v", err)
	}
	if err := h.notificationSvc.MarkSeen(ctx, ownerIdentity.SubjectID, items[0].ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	items, _ = h.notificationSvc.ListUnseen(ctx, ownerIdentity.SubjectID)
	if len(items) != 1 {
		t.Fatalf("unseen after mark %d, want 1", len(items))
	}
}

func TestPushBodyFallsBackToStore(t *testing.T) {
	c := &domain.Case{ID: "abc", Store: "Acme"}
	if got := PushBody(c, domain.CaseStatusNeedInfo); got != "Acme is now Need Info." {
		t.Fatalf("body = %q", got)
	}
}
