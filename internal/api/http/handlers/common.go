package handlers

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/service"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

func identity(c *fiber.Ctx) (domain.Identity, error) {
	id, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return id, nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// formFile opens an optional multipart file. The returned closer is never nil.
func formFile(c *fiber.Ctx, field string) (*service.FileUpload, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, nil
	}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, apperrors.NewValidationError("invalid multipart payload", map[string]any{field: err.Error()})
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*service.FileUpload, func(), error) {
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, apperrors.NewInternalError(err)
	}
	contentType := header.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	return &service.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Content:     f,
	}, func() { _ = f.Close() }, nil
}

func parseStatus(raw string) domain.CaseStatus {
	return domain.CaseStatus(strings.ToUpper(strings.TrimSpace(raw)))
}
