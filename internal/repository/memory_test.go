package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMemoryCaseRepositoryIsolatesStoredState(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()

	c := &domain.Case{ID: "c1", OwnerID: "u1", Status: domain.CaseStatusPending}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	c.Status = domain.CaseStatusApproved

	got, err := repo.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.CaseStatusPending {
		t.Fatalf("caller mutation leaked into store: %s", got.Status)
	}
}

func TestMemoryCaseRepositoryKeepsFirstThread(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, &domain.Case{ID: "c1", ThreadID: strPtr("t-1")}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Update(ctx, &domain.Case{ID: "c1", ThreadID: strPtr("t-2")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.GetByID(ctx, "c1")
	if domain.StringValue(got.ThreadID) != "t-1" {
		t.Fatalf("thread overwritten: %q", domain.StringValue(got.ThreadID))
	}

	if err := repo.Update(ctx, &domain.Case{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCaseRepositoryListFilters(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []domain.Case{
		{ID: "a", Store: "Acme", Product: "Kettle", Status: domain.CaseStatusPending, CreatedAt: base},
		{ID: "b", Store: "Bolt", Product: "Toaster", Status: domain.CaseStatusApproved, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Store: "acme outlet", Product: "Fan", Status: domain.CaseStatusPending, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	status := domain.CaseStatusPending
	search := "ACME"
	items, total, err := repo.List(ctx, CaseFilter{Status: &status, Search: &search})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(items))
	}
	if items[0].ID != "c" {
		t.Fatalf("expected newest first, got %s", items[0].ID)
	}

	items, total, _ = repo.List(ctx, CaseFilter{Limit: 1, Offset: 1})
	if total != 3 || len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("unexpected page: total=%d items=%v", total, items)
	}
}

func TestMemoryNotificationRepository(t *testing.T) {
	repo := NewMemoryNotificationRepository()
	ctx := context.Background()
	for _, id := range []string{"n1", "n2", "n3"} {
		if err := repo.Create(ctx, &domain.Notification{ID: id, UserID: "u1", CaseID: "c1", NewStatus: domain.CaseStatusInReview}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := repo.MarkSeen(ctx, "n2", "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	if err := repo.MarkSeen(ctx, "n2", "u1"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	items, err := repo.ListUnseen(ctx, "u1", 25)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != "n3" || items[1].ID != "n1" {
		t.Fatalf("unexpected unseen list: %+v", items)
	}
}

func TestMemoryStoreRepositoryNameIgnoresCase(t *testing.T) {
	repo := NewMemoryStoreRepository(domain.Store{StoreID: "s1", Name: "Acme Corp", Email: "care@acme.test"})
	got, err := repo.GetByName(context.Background(), "acme corp")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got.StoreID != "s1" {
		t.Fatalf("unexpected store %s", got.StoreID)
	}
	if _, err := repo.GetByName(context.Background(), "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("partial names must not match, got %v", err)
	}
}
