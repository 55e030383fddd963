package service

import (
	"context"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/storage"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// CaseService coordinates case creation and administration.
type CaseService struct {
	cases      repository.CaseRepository
	storage    storage.ObjectStorage
	machine    *StatusMachine
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	CaseRepo   repository.CaseRepository
	Storage    storage.ObjectStorage
	Machine    *StatusMachine
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// CaseCreateInput describes a new complaint.
type CaseCreateInput struct {
	Store           string
	Product         string
	Description     string
	Images          []string
	ProductImageURL *string
	ReceiptImageURL *string
	ProductImage    *FileUpload
	ReceiptImage    *FileUpload
}

// CaseListFilter describes admin listing filters.
type CaseListFilter struct {
	Status *domain.CaseStatus
	Search *string
	Limit  int
	Offset int
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	s := &CaseService{
		cases:      deps.CaseRepo,
		storage:    deps.Storage,
		machine:    deps.Machine,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = systemClock
	}
	return s
}

// CreateCase files a complaint owned by identity in PENDING.
func (s *CaseService) CreateCase(ctx context.Context, identity domain.Identity, input CaseCreateInput) (*domain.Case, error) {
	store := strings.TrimSpace(input.Store)
	product := strings.TrimSpace(input.Product)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if store == "" {
		details["store"] = "required"
	}
	if product == "" {
		details["product"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid case", details)
	}

	now := s.now()
	c := &domain.Case{
		ID:              newCaseID(),
		OwnerID:         identity.SubjectID,
		Store:           store,
		Product:         product,
		Description:     description,
		Images:          compactStrings(input.Images),
		ProductImageURL: trimmedPtr(input.ProductImageURL),
		ReceiptImageURL: trimmedPtr(input.ReceiptImageURL),
		Status:          domain.CaseStatusPending,
		CreatedAt:       now,
	}
	if email := strings.ToLower(strings.TrimSpace(identity.Email)); email != "" {
		c.OwnerEmail = &email
	}

	if input.ProductImage != nil {
		url, err := s.upload(ctx, c, "product", input.ProductImage)
		if err != nil {
			return nil, err
		}
		c.ProductImageURL = &url
	}
	if input.ReceiptImage != nil {
		url, err := s.upload(ctx, c, "receipt", input.ReceiptImage)
		if err != nil {
			return nil, err
		}
		c.ReceiptImageURL = &url
	}

	c.StatusHistory.Append(domain.StatusEntry{
		Status: domain.CaseStatusPending,
		By:     identity.Actor(),
		At:     now,
		Note:   "case created",
	})

	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewEvent(events.EventCaseCreated, c.ID, identity.Actor(), events.CaseCreatedPayload{
		OwnerID: c.OwnerID,
		Store:   c.Store,
		Product: c.Product,
	}))
	return c, nil
}

func (s *CaseService) upload(ctx context.Context, c *domain.Case, kind string, file *FileUpload) (string, error) {
	if s.storage == nil {
		return "", apperrors.NewValidationError("file uploads are not enabled", nil)
	}
	name := kind + path.Ext(safeFilename(file.Filename, kind))
	url, err := s.storage.Upload(ctx, uploadKey("claimy", c.OwnerID, "cases", c.ID, name), file.ContentType, file.Content)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return url, nil
}

// ListCases returns the owner's cases, newest first.
func (s *CaseService) ListCases(ctx context.Context, ownerID string) ([]domain.Case, error) {
	items, err := s.cases.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Case{}
	}
	return items, nil
}

// GetCase returns one case visible to identity.
func (s *CaseService) GetCase(ctx context.Context, identity domain.Identity, caseID string) (*domain.Case, error) {
	return loadCaseFor(ctx, s.cases, identity, caseID)
}

// ListAllCases is the admin search.
func (s *CaseService) ListAllCases(ctx context.Context, filter CaseListFilter) ([]domain.Case, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, apperrors.NewInvalidStatus(string(*filter.Status))
	}
	items, total, err := s.cases.List(ctx, repository.CaseFilter{
		Status: filter.Status,
		Search: filter.Search,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []domain.Case{}
	}
	return items, total, nil
}

// TransitionStatus moves a case to next on behalf of identity.
func (s *CaseService) TransitionStatus(ctx context.Context, identity domain.Identity, caseID string, next domain.CaseStatus, note string) (*domain.Case, error) {
	return s.machine.TransitionByID(ctx, identity, caseID, next, strings.TrimSpace(note))
}

// Approve is an admin shortcut for APPROVED.
func (s *CaseService) Approve(ctx context.Context, identity domain.Identity, caseID string) (*domain.Case, error) {
	return s.TransitionStatus(ctx, identity, caseID, domain.CaseStatusApproved, "")
}

// Reject is an admin shortcut for REJECTED.
func (s *CaseService) Reject(ctx context.Context, identity domain.Identity, caseID string) (*domain.Case, error) {
	return s.TransitionStatus(ctx, identity, caseID, domain.CaseStatusRejected, "")
}

// AttachResolutionCode stores a resolution code and approves the case in the same write.
func (s *CaseService) AttachResolutionCode(ctx context.Context, identity domain.Identity, caseID, code string, expiry *time.Time) (*domain.Case, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("code is required", map[string]any{"code": "required"})
	}
	c, err := loadCase(ctx, s.cases, caseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c.Resolution = &domain.Resolution{Code: code, AddedAt: &now, ExpiryDate: expiry, Used: false}
	change, err := s.machine.Apply(c, domain.CaseStatusApproved, identity.Actor(), "Resolution code attached")
	if err != nil {
		return nil, err
	}
	if err := s.machine.Save(ctx, c, change); err != nil {
		return nil, err
	}
	return c, nil
}

// SetManualAnalysis stores an operator note.
func (s *CaseService) SetManualAnalysis(ctx context.Context, caseID, text string) (*domain.Case, error) {
	c, err := loadCase(ctx, s.cases, caseID)
	if err != nil {
		return nil, err
	}
	c.ManualAnalysis = &domain.ManualAnalysis{Text: strings.TrimSpace(text), UpdatedAt: s.now()}
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CaseService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
