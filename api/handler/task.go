package handler

import (
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/api/transport"
	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/httpcontext"
	matchingUC "github.com/fastygo/foodbridge/usecase/matching"
)

type TaskHandler struct {
	baseHandler
	uc *matchingUC.UseCase
}

func NewTaskHandler(uc *matchingUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks visible to the caller
// @Tags tasks
// @Router /api/tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)
	var filter []domain.TaskStatus
	for _, s := range statuses(ctx) {
		status := domain.TaskStatus(s)
		if !status.Valid() {
			h.respondInvalid(ctx, "unknown task status "+s)
			return
		}
		filter = append(filter, status)
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, actor(ctx), filter, limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	respondList(h.baseHandler, ctx, tasks, limit, offset)
}

// @Summary Task details
// @Tags tasks
// @Router /api/tasks/{id} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Accept a task (volunteer)
// @Tags tasks
// @Router /api/tasks/{id}/accept [post]
func (h *TaskHandler) Accept(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.AcceptTask(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Decline an offered task (volunteer)
// @Tags tasks
// @Router /api/tasks/{id}/reject [post]
func (h *TaskHandler) Reject(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.RejectTask(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Move a task one step forward (volunteer)
// @Tags tasks
// @Router /api/tasks/{id}/advance [post]
func (h *TaskHandler) Advance(ctx *fasthttp.RequestCtx) {
	var req transport.AdvanceTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	next := domain.TaskStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if next == "" {
		h.respondInvalid(ctx, "status is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.AdvanceTask(stdCtx, actor(ctx), pathID(ctx), next)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Re-run volunteer selection (admin)
// @Tags tasks
// @Router /api/tasks/{id}/assign [post]
func (h *TaskHandler) Assign(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.AssignVolunteer(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}
