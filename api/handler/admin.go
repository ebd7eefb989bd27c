package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/pkg/httpcontext"
	adminUC "github.com/fastygo/foodbridge/usecase/admin"
)

type AdminHandler struct {
	baseHandler
	uc *adminUC.UseCase
}

func NewAdminHandler(uc *adminUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Accounts awaiting verification
// @Tags admin
// @Router /api/admin/pending-users [get]
func (h *AdminHandler) PendingUsers(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	users, err := h.uc.PendingUsers(stdCtx, actor(ctx), limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	respondList(h.baseHandler, ctx, users, limit, offset)
}

// @Summary Verify a pending account
// @Tags admin
// @Router /api/admin/users/{id}/verify [post]
func (h *AdminHandler) Verify(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.uc.Verify(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Summary Reject (remove) a pending account
// @Tags admin
// @Router /api/admin/users/{id} [delete]
func (h *AdminHandler) Reject(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Reject(stdCtx, actor(ctx), pathID(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"deleted": pathID(ctx)})
}

// @Summary Platform counters
// @Tags admin
// @Router /api/admin/stats [get]
func (h *AdminHandler) Stats(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.uc.Stats(stdCtx, actor(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}
