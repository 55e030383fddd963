package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/service"
)

const streamKeepAlive = 25 * time.Second

// NotificationsHandler serves unseen notifications and the live stream.
type NotificationsHandler struct {
	notifications *service.NotificationService
	logger        *zap.Logger
	keepAlive     time.Duration
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService, logger *zap.Logger) *NotificationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationsHandler{notifications: notifications, logger: logger, keepAlive: streamKeepAlive}
}

// ListUnseen GET /notifications.
func (h *NotificationsHandler) ListUnseen(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.ListUnseen(c.UserContext(), caller.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationResponses(items)})
}

// MarkSeen POST /notifications/:id/seen.
func (h *NotificationsHandler) MarkSeen(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkSeen(c.UserContext(), caller.SubjectID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Stream GET /notifications/stream as server-sent events. Missed events are not replayed.
func (h *NotificationsHandler) Stream(c *fiber.Ctx) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	// The request context ends when the handler returns, before the body is streamed.
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := h.notifications.Subscribe(ctx, caller.SubjectID)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	userID := caller.SubjectID
	keepAlive := h.keepAlive
	logger := h.logger
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil || w.Flush() != nil {
			return
		}
		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					logger.Warn("notification encode failed", zap.String("user_id", userID), zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", event.ID, payload)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				logger.Debug("notification stream closed", zap.String("user_id", userID))
				return
			}
		}
	}))
	return nil
}
