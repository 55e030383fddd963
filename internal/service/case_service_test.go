package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

func TestCreateCaseRecordsInitialHistory(t *testing.T) {
	h := newHarness(t)
	identity := domain.Identity{SubjectID: "u9", Email: "  Mixed@Example.COM "}
	c, err := h.caseService.CreateCase(context.Background(), identity, CaseCreateInput{
		Store:        " Acme ",
		Product:      "Kettle",
		Description:  "Broken lid",
		Images:       []string{"", " http://img/1.jpg "},
		ProductImage: &FileUpload{Filename: "photo.png", ContentType: "image/png", Content: strings.NewReader("png")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(c.ID) != 24 || strings.Trim(c.ID, "0123456789abcdef") != "" {
		t.Fatalf("case id %q is not 24 hex chars", c.ID)
	}
	if c.Status != domain.CaseStatusPending || c.Store != "Acme" {
		t.Fatalf("unexpected case %+v", c)
	}
	if domain.StringValue(c.OwnerEmail) != "mixed@example.com" {
		t.Fatalf("owner email not normalized: %q", domain.StringValue(c.OwnerEmail))
	}
	if len(c.Images) != 1 || c.Images[0] != "http://img/1.jpg" {
		t.Fatalf("images %v", c.Images)
	}
	if !strings.HasSuffix(domain.StringValue(c.ProductImageURL), "/claimy/u9/cases/"+c.ID+"/product.png") {
		t.Fatalf("product image url %q", domain.StringValue(c.ProductImageURL))
	}
	first, ok := c.StatusHistory.Last()
	if !ok || c.StatusHistory.Len() != 1 || first.Status != domain.CaseStatusPending || first.Note != "case created" {
		t.Fatalf("initial history %+v", c.StatusHistory)
	}
	if len(h.notifications.All()) != 0 {
		t.Fatal("creation must not notify")
	}
}

func TestCreateCaseValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.caseService.CreateCase(context.Background(), ownerIdentity, CaseCreateInput{Store: "Acme", Product: "  "})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	de := apperrors.ToDomainError(err)
	if _, ok := de.Details["product"]; !ok {
		t.Fatalf("details missing product: %v", de.Details)
	}
	if _, ok := de.Details["description"]; !ok {
		t.Fatalf("details missing description: %v", de.Details)
	}
}

func TestAttachResolutionCodeApprovesInOneWrite(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := h.caseService.AttachResolutionCode(context.Background(), adminIdentity, c.ID, " CODE-42 ", &expiry)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	stored := h.reload(t, got.ID)
	if stored.Status != domain.CaseStatusApproved {
		t.Fatalf("status %s", stored.Status)
	}
	if stored.Resolution == nil || stored.Resolution.Code != "CODE-42" || stored.Resolution.Used || stored.Resolution.AddedAt == nil {
		t.Fatalf("resolution %+v", stored.Resolution)
	}
	if !stored.Resolution.ExpiryDate.Equal(expiry) {
		t.Fatal("expiry not stored")
	}
	last, _ := stored.StatusHistory.Last()
	if last.Note != "Resolution code attached" {
		t.Fatalf("note %q", last.Note)
	}
	if len(h.notifications.All()) != 1 {
		t.Fatal("expected one notification")
	}

	if _, err := h.caseService.AttachResolutionCode(context.Background(), adminIdentity, c.ID, "", nil); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for empty code, got %v", err)
	}
}

func TestListAllCasesRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	h.seedCase(t)
	bad := domain.CaseStatus("ARCHIVED")
	if _, _, err := h.caseService.ListAllCases(context.Background(), CaseListFilter{Status: &bad}); !apperrors.HasCode(err, apperrors.CodeInvalidStatus) {
		t.Fatalf("expected InvalidStatus, got %v", err)
	}
	pending := domain.CaseStatusPending
	items, total, err := h.caseService.ListAllCases(context.Background(), CaseListFilter{Status: &pending})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("list: %d %d %v", total, len(items), err)
	}
}

func TestGetCaseHidesForeignCases(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)
	if _, err := h.caseService.GetCase(context.Background(), domain.Identity{SubjectID: "u2"}, c.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := h.caseService.GetCase(context.Background(), adminIdentity, c.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestSetManualAnalysis(t *testing.T) {
	h := newHarness(t)
	c := h.seedCase(t)
	if _, err := h.caseService.SetManualAnalysis(context.Background(), c.ID, " looks legit "); err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if got := h.reload(t, c.ID); got.ManualAnalysis == nil || got.ManualAnalysis.Text != "looks legit" {
		t.Fatalf("analysis %+v", got.ManualAnalysis)
	}
}
