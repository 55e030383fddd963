package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/service"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// MailHandler triggers mailbox batch jobs and exposes counters.
type MailHandler struct {
	sync          *service.MailSyncBatchJob
	metrics       *observability.Metrics
	defaultWindow time.Duration
}

// NewMailHandler constructs handler.
func NewMailHandler(sync *service.MailSyncBatchJob, metrics *observability.Metrics, defaultWindow time.Duration) *MailHandler {
	return &MailHandler{sync: sync, metrics: metrics, defaultWindow: defaultWindow}
}

// SyncRecent POST /admin/mail/sync?hours=N.
func (h *MailHandler) SyncRecent(c *fiber.Ctx) error {
	window := h.defaultWindow
	if hours := c.QueryInt("hours", 0); hours > 0 {
		window = time.Duration(hours) * time.Hour
	}
	result, err := h.sync.SyncRecent(c.UserContext(), window)
	if err != nil {
		return apperrors.NewTransportFailure("mailbox sync failed", err)
	}
	return c.JSON(fiber.Map{"data": result})
}

// CheckReplies POST /admin/mail/check-replies.
func (h *MailHandler) CheckReplies(c *fiber.Ctx) error {
	result, err := h.sync.CheckReplies(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Metrics GET /admin/metrics.
func (h *MailHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
