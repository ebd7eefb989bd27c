package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/foodbridge/api/handler"
)

type Handlers struct {
	Auth         *apiHandler.AuthHandler
	Donation     *apiHandler.DonationHandler
	Task         *apiHandler.TaskHandler
	Notification *apiHandler.NotificationHandler
	Admin        *apiHandler.AdminHandler
	Health       *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/auth/register", handlers.Auth.Register)
	r.POST("/api/auth/login", handlers.Auth.Login)
	r.POST("/api/auth/logout", authMiddleware(handlers.Auth.Logout))
	r.GET("/api/auth/me", authMiddleware(handlers.Auth.Me))

	// Donations
	r.GET("/api/donations", authMiddleware(handlers.Donation.List))
	r.POST("/api/donations", authMiddleware(handlers.Donation.Create))
	r.GET("/api/donations/available", authMiddleware(handlers.Donation.Available))
	r.GET("/api/donations/{id}", authMiddleware(handlers.Donation.Get))
	r.GET("/api/donations/{id}/history", authMiddleware(handlers.Donation.History))
	r.POST("/api/donations/{id}/accept", authMiddleware(handlers.Donation.Accept))
	r.POST("/api/donations/{id}/cancel", authMiddleware(handlers.Donation.Cancel))

	// Tasks
	r.GET("/api/tasks", authMiddleware(handlers.Task.List))
	r.GET("/api/tasks/{id}", authMiddleware(handlers.Task.Get))
	r.POST("/api/tasks/{id}/accept", authMiddleware(handlers.Task.Accept))
	r.POST("/api/tasks/{id}/reject", authMiddleware(handlers.Task.Reject))
	r.POST("/api/tasks/{id}/advance", authMiddleware(handlers.Task.Advance))
	r.POST("/api/tasks/{id}/assign", authMiddleware(handlers.Task.Assign))

	// Notifications
	r.GET("/api/notifications", authMiddleware(handlers.Notification.List))
	r.GET("/api/notifications/unread-count", authMiddleware(handlers.Notification.UnreadCount))
	r.POST("/api/notifications/read-all", authMiddleware(handlers.Notification.MarkAllRead))
	r.POST("/api/notifications/{id}/read", authMiddleware(handlers.Notification.MarkRead))
	r.POST("/api/notifications/{id}/unread", authMiddleware(handlers.Notification.MarkUnread))
	r.DELETE("/api/notifications/{id}", authMiddleware(handlers.Notification.Delete))

	// Admin
	r.GET("/api/admin/pending-users", authMiddleware(handlers.Admin.PendingUsers))
	r.GET("/api/admin/stats", authMiddleware(handlers.Admin.Stats))
	r.POST("/api/admin/users/{id}/verify", authMiddleware(handlers.Admin.Verify))
	r.DELETE("/api/admin/users/{id}", authMiddleware(handlers.Admin.Reject))

	return r
}
