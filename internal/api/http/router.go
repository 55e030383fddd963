package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/http/handlers"
	"github.com/spec-kit/case-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Cases         *handlers.CasesHandler
	AdminCases    *handlers.AdminCasesHandler
	Notifications *handlers.NotificationsHandler
	Mail          *handlers.MailHandler
	Authenticator *auth.Authenticator
	UploadsDir    string
	UploadsPrefix string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.UploadsDir != "" && cfg.UploadsPrefix != "" {
		app.Static(cfg.UploadsPrefix, cfg.UploadsDir, fiber.Static{Browse: false})
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)

	owner := app.Group("", cfg.Authenticator.Handle, auth.RequireIdentity())
	owner.Get("/me", cfg.Auth.Me)
	owner.Put("/me/device-token", cfg.Auth.UpdateDeviceToken)

	owner.Get("/cases", cfg.Cases.ListCases)
	owner.Post("/cases", cfg.Cases.CreateCase)
	owner.Get("/cases/:id", cfg.Cases.GetCase)
	owner.Patch("/cases/:id/status", cfg.Cases.UpdateStatus)
	owner.Get("/cases/:id/info-requests", cfg.Cases.PendingRequests)
	owner.Post("/cases/:id/info-response", cfg.Cases.SubmitResponse)

	owner.Get("/notifications", cfg.Notifications.ListUnseen)
	owner.Get("/notifications/stream", cfg.Notifications.Stream)
	owner.Post("/notifications/:id/seen", cfg.Notifications.MarkSeen)

	admin := app.Group("/admin", cfg.Authenticator.Handle, auth.RequireAdmin())
	admin.Get("/cases", cfg.AdminCases.ListCases)
	admin.Get("/cases/:id", cfg.AdminCases.GetCase)
	admin.Get("/cases/:id/thread", cfg.AdminCases.Thread)
	admin.Get("/cases/:id/reply-target", cfg.AdminCases.ReplyTarget)
	admin.Patch("/cases/:id/status", cfg.AdminCases.UpdateStatus)
	admin.Post("/cases/:id/approve", cfg.AdminCases.Approve)
	admin.Post("/cases/:id/reject", cfg.AdminCases.Reject)
	admin.Post("/cases/:id/code", cfg.AdminCases.AttachCode)
	admin.Put("/cases/:id/analysis", cfg.AdminCases.SetAnalysis)
	admin.Post("/cases/:id/request-info", cfg.AdminCases.RequestInfo)
	admin.Post("/cases/:id/reply", cfg.AdminCases.Reply)
	admin.Post("/cases/:id/email/send", cfg.AdminCases.SendEmail)

	admin.Post("/mail/sync", cfg.Mail.SyncRecent)
	admin.Post("/mail/check-replies", cfg.Mail.CheckReplies)
	admin.Get("/metrics", cfg.Mail.Metrics)
}
