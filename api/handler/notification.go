package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/pkg/httpcontext"
	notificationUC "github.com/fastygo/foodbridge/usecase/notification"
)

type NotificationHandler struct {
	baseHandler
	uc *notificationUC.UseCase
}

func NewNotificationHandler(uc *notificationUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Own notifications, newest first
// @Tags notifications
// @Router /api/notifications [get]
func (h *NotificationHandler) List(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	list, err := h.uc.List(stdCtx, actor(ctx), limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	respondList(h.baseHandler, ctx, list, limit, offset)
}

// @Summary Number of unread notifications
// @Tags notifications
// @Router /api/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	count, err := h.uc.UnreadCount(stdCtx, actor(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"unread": count})
}

// @Summary Mark a notification read
// @Tags notifications
// @Router /api/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	n, err := h.uc.MarkRead(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, n)
}

// @Summary Mark a notification unread
// @Tags notifications
// @Router /api/notifications/{id}/unread [post]
func (h *NotificationHandler) MarkUnread(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	n, err := h.uc.MarkUnread(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, n)
}

// @Summary Mark every notification read
// @Tags notifications
// @Router /api/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.MarkAllRead(stdCtx, actor(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"updated": updated})
}

// @Summary Delete a notification
// @Tags notifications
// @Router /api/notifications/{id} [delete]
func (h *NotificationHandler) Delete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, actor(ctx), pathID(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"deleted": pathID(ctx)})
}
