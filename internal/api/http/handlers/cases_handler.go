package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/service"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// CasesHandler serves the owner-facing case endpoints.
type CasesHandler struct {
	cases *service.CaseService
	info  *service.InfoExchangeTracker
}

// NewCasesHandler constructs handler.
func NewCasesHandler(cases *service.CaseService, info *service.InfoExchangeTracker) *CasesHandler {
	return &CasesHandler{cases: cases, info: info}
}

// CreateCase POST /cases. Accepts JSON or multipart with productImage/receiptImage files.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	product, closeProduct, err := formFile(c, "productImage")
	defer closeProduct()
	if err != nil {
		return err
	}
	receipt, closeReceipt, err := formFile(c, "receiptImage")
	defer closeReceipt()
	if err != nil {
		return err
	}

	created, err := h.cases.CreateCase(c.UserContext(), caller, service.CaseCreateInput{
		Store:           req.Store,
		Product:         req.Product,
		Description:     req.Description,
		Images:          req.Images,
		ProductImageURL: req.ProductImageURL,
		ReceiptImageURL: req.ReceiptImageURL,
		ProductImage:    product,
		ReceiptImage:    receipt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewOwnerCaseResponse(created)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	items, err := h.cases.ListCases(c.UserContext(), caller.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CaseResponses(items, dto.NewOwnerCaseResponse)})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	found, err := h.cases.GetCase(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOwnerCaseResponse(found)})
}

// UpdateStatus PATCH /cases/:id/status.
func (h *CasesHandler) UpdateStatus(c *fiber.Ctx) error {
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
	return c.JSON(fiber.Map{"data": dto.NewOwnerCaseResponse(updated)})
}

// PendingRequests GET /cases/:id/info-requests.
func (h *CasesHandler) PendingRequests(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	items, err := h.info.ListPendingRequests(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// SubmitResponse POST /cases/:id/info-response. Accepts JSON or multipart with an optional "file" part.
func (h *CasesHandler) SubmitResponse(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.InfoResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	file, closeFile, err := formFile(c, "file")
	defer closeFile()
	if err != nil {
		return err
	}

	updated, resp, err := h.info.SubmitResponse(c.UserContext(), caller, c.Params("id"), service.SubmitResponseInput{
		RequestID: req.RequestID,
		Answer:    req.Answer,
		File:      file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"case":     dto.NewOwnerCaseResponse(updated),
		"response": resp,
	}})
}
