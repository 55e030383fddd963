package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// CreateCaseRequest is the JSON form of a new complaint. Multipart requests carry the same
// fields plus productImage and receiptImage files.
type CreateCaseRequest struct {
	Store           string   `json:"store" form:"store"`
	Product         string   `json:"product" form:"product"`
	Description     string   `json:"description" form:"description"`
	Images          []string `json:"images" form:"images"`
	ProductImageURL *string  `json:"productImageUrl" form:"productImageUrl"`
	ReceiptImageURL *string  `json:"receiptImageUrl" form:"receiptImageUrl"`
}

// StatusUpdateRequest moves a case.
type StatusUpdateRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// ResolutionCodeRequest attaches a resolution code.
type ResolutionCodeRequest struct {
	Code       string     `json:"code"`
	ExpiryDate *time.Time `json:"expiryDate"`
}

// ManualAnalysisRequest stores an operator note.
type ManualAnalysisRequest struct {
	Text string `json:"text"`
}

// CaseListQuery captures admin list filters.
type CaseListQuery struct {
	Status *domain.CaseStatus
	Search *string
	Limit  int
	Offset int
}

// CaseResponse is the full case view. Owners get the same shape without the mailbox fields.
type CaseResponse struct {
	ID                  string                 `json:"id"`
	OwnerID             string                 `json:"ownerId"`
	OwnerEmail          *string                `json:"ownerEmail"`
	Store               string                 `json:"store"`
	Product             string                 `json:"product"`
	Description         string                 `json:"description"`
	Images              []string               `json:"images"`
	ProductImageURL     *string                `json:"productImageUrl"`
	ReceiptImageURL     *string                `json:"receiptImageUrl"`
	Status              domain.CaseStatus      `json:"status"`
	StatusLabel         string                 `json:"statusLabel"`
	StatusHistory       []domain.StatusEntry   `json:"statusHistory"`
	InfoRequestHistory  []domain.InfoRequest   `json:"infoRequestHistory"`
	InfoResponseHistory []domain.InfoResponse  `json:"infoResponseHistory"`
	Resolution          *domain.Resolution     `json:"resolution,omitempty"`
	Emails              []domain.EmailEntry    `json:"emails,omitempty"`
	ThreadID            *string                `json:"threadId,omitempty"`
	LastEmailReplyAt    *time.Time             `json:"lastEmailReplyAt,omitempty"`
	LastEmailMessageID  *string                `json:"lastEmailMessageId,omitempty"`
	ManualAnalysis      *domain.ManualAnalysis `json:"manualAnalysis,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// NewCaseResponse maps a case for admins.
func NewCaseResponse(c *domain.Case) CaseResponse {
	resp := NewOwnerCaseResponse(c)
	resp.Emails = nonNil(c.Emails)
	resp.ThreadID = c.ThreadID
	resp.LastEmailReplyAt = c.LastEmailReplyAt
	resp.LastEmailMessageID = c.LastEmailMessageID
	resp.ManualAnalysis = c.ManualAnalysis
	return resp
}

// NewOwnerCaseResponse maps a case for its owner.
func NewOwnerCaseResponse(c *domain.Case) CaseResponse {
	return CaseResponse{
		ID:                  c.ID,
		OwnerID:             c.OwnerID,
		OwnerEmail:          c.OwnerEmail,
		Store:               c.Store,
		Product:             c.Product,
		Description:         c.Description,
		Images:              nonNil(c.Images),
		ProductImageURL:     c.ProductImageURL,
		ReceiptImageURL:     c.ReceiptImageURL,
		Status:              c.Status,
		StatusLabel:         c.Status.Label(),
		StatusHistory:       nonNil(c.StatusHistory),
		InfoRequestHistory:  nonNil(c.InfoRequestHistory),
		InfoResponseHistory: nonNil(c.InfoResponseHistory),
		Resolution:          c.Resolution,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// CaseResponses maps a slice with mapper.
func CaseResponses(items []domain.Case, mapper func(*domain.Case) CaseResponse) []CaseResponse {
	out := make([]CaseResponse, 0, len(items))
	for i := range items {
		out = append(out, mapper(&items[i]))
	}
	return out
}

func nonNil[T any, S ~[]T](s S) []T {
	if s == nil {
		return []T{}
	}
	return []T(s)
}
