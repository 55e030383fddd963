package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/service"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// AdminCasesHandler serves the operator console.
type AdminCasesHandler struct {
	cases      *service.CaseService
	info       *service.InfoExchangeTracker
	correlator *service.ThreadCorrelator
	mailbox    string
}

// NewAdminCasesHandler constructs handler.
func NewAdminCasesHandler(cases *service.CaseService, info *service.InfoExchangeTracker, correlator *service.ThreadCorrelator, mailbox string) *AdminCasesHandler {
	return &AdminCasesHandler{cases: cases, info: info, correlator: correlator, mailbox: mailbox}
}

// ListCases GET /admin/cases?status=&q=&limit=&offset=.
func (h *AdminCasesHandler) ListCases(c *fiber.Ctx) error {
	query := parseCaseListQuery(c)
	items, total, err := h.cases.ListAllCases(c.UserContext(), service.CaseListFilter{
		Status: query.Status,
		Search: query.Search,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.CaseResponses(items, dto.NewCaseResponse),
		"meta": fiber.Map{"total": total, "limit": query.Limit, "offset": query.Offset},
	})
}

// GetCase GET /admin/cases/:id.
func (h *AdminCasesHandler) GetCase(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	found, err := h.cases.GetCase(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(found)})
}

// Thread GET /admin/cases/:id/thread.
func (h *AdminCasesHandler) Thread(c *fiber.Ctx) error {
	msgs, err := h.correlator.GetThread(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewThreadMessages(msgs, h.mailbox)})
}

// UpdateStatus PATCH /admin/cases/:id/status.
func (h *AdminCasesHandler) UpdateStatus(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.cases.TransitionStatus(c.UserContext(), caller, c.Params("id"), parseStatus(req.Status), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(updated)})
}

// Approve POST /admin/cases/:id/approve.
func (h *AdminCasesHandler) Approve(c *fiber.Ctx) error {
	return h.shortcut(c, h.cases.Approve)
}

// Reject POST /admin/cases/:id/reject.
func (h *AdminCasesHandler) Reject(c *fiber.Ctx) error {
	return h.shortcut(c, h.cases.Reject)
}

func (h *AdminCasesHandler) shortcut(c *fiber.Ctx, fn func(context.Context, domain.Identity, string) (*domain.Case, error)) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	updated, err := fn(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(updated)})
}

// AttachCode POST /admin/cases/:id/code.
func (h *AdminCasesHandler) AttachCode(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.ResolutionCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.cases.AttachResolutionCode(c.UserContext(), caller, c.Params("id"), req.Code, req.ExpiryDate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(updated)})
}

// SetAnalysis PUT /admin/cases/:id/analysis.
func (h *AdminCasesHandler) SetAnalysis(c *fiber.Ctx) error {
	var req dto.ManualAnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.cases.SetManualAnalysis(c.UserContext(), c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(updated)})
}

// RequestInfo POST /admin/cases/:id/request-info.
func (h *AdminCasesHandler) RequestInfo(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.RequestInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, request, err := h.info.RequestInfo(c.UserContext(), caller, c.Params("id"), service.RequestInfoInput{
		Message:       req.Message,
		RequiresFile:  req.RequiresFile,
		RequiresYesNo: req.RequiresYesNo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"case":    dto.NewCaseResponse(updated),
		"request": request,
	}})
}

// Reply POST /admin/cases/:id/reply. Continues the linked thread when one exists.
func (h *AdminCasesHandler) Reply(c *fiber.Ctx) error {
	return h.send(c, false)
}

// SendEmail POST /admin/cases/:id/email/send. Honors an explicit recipient and newThread.
func (h *AdminCasesHandler) SendEmail(c *fiber.Ctx) error {
	return h.send(c, true)
}

func (h *AdminCasesHandler) send(c *fiber.Ctx, allowOverrides bool) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.SendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.SendEmailInput{
		Subject:       req.Subject,
		Body:          req.Body,
		AttachProduct: req.AttachProduct,
		AttachReceipt: req.AttachReceipt,
	}
	if allowOverrides {
		input.To = strings.TrimSpace(req.To)
		input.NewThread = req.NewThread
	}
	updated, err := h.correlator.SendCaseEmail(c.UserContext(), caller, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseResponse(updated)})
}

// ReplyTarget GET /admin/cases/:id/reply-target.
func (h *AdminCasesHandler) ReplyTarget(c *fiber.Ctx) error {
	target, err := h.correlator.PreviewReplyTarget(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": target})
}

func parseCaseListQuery(c *fiber.Ctx) dto.CaseListQuery {
	query := dto.CaseListQuery{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := parseStatus(raw)
		query.Status = &status
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		query.Search = &q
	}
	return query
}
