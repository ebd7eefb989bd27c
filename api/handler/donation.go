package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/api/transport"
	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/httpcontext"
	donationUC "github.com/fastygo/foodbridge/usecase/donation"
	matchingUC "github.com/fastygo/foodbridge/usecase/matching"
)

type DonationHandler struct {
	baseHandler
	donations *donationUC.UseCase
	matching  *matchingUC.UseCase
}

func NewDonationHandler(donations *donationUC.UseCase, matching *matchingUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		donations:   donations,
		matching:    matching,
	}
}

// @Summary List donations visible to the caller
// @Tags donations
// @Router /api/donations [get]
func (h *DonationHandler) List(ctx *fasthttp.RequestCtx) {
	limit, offset := pagination(ctx)
	var filter []domain.DonationStatus
	for _, s := range statuses(ctx) {
		status := domain.DonationStatus(s)
		if !status.Valid() {
			h.respondInvalid(ctx, "unknown donation status "+s)
			return
		}
		filter = append(filter, status)
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	list, err := h.donations.ListForUser(stdCtx, actor(ctx), filter, limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	respondList(h.baseHandler, ctx, list, limit, offset)
}

// @Summary List a new donation
// @Tags donations
// @Router /api/donations [post]
func (h *DonationHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.CreateDonationRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.donations.Create(stdCtx, actor(ctx), donationUC.CreateInput{
		FoodDetails: req.FoodDetails,
		Location:    req.Location,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Pending donations open for acceptance
// @Tags donations
// @Router /api/donations/available [get]
func (h *DonationHandler) Available(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	limit, offset := pagination(ctx)
	query := donationUC.AvailableQuery{
		Category: string(args.Peek("category")),
		Urgency:  domain.Urgency(args.Peek("urgency")),
	}
	lat, hasLat := parseFloat(string(args.Peek("lat")))
	lng, hasLng := parseFloat(string(args.Peek("lng")))
	if hasLat != hasLng {
		h.respondInvalid(ctx, "lat and lng must be given together")
		return
	}
	if hasLat {
		query.Near = &domain.Coordinates{lat, lng}
	}
	if radius, ok := parseFloat(string(args.Peek("radiusKm"))); ok {
		query.RadiusKm = radius
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	seq, err := h.donations.Available(stdCtx, actor(ctx), query)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	list := make([]domain.Donation, 0, limit)
	skipped := 0
	for d, err := range seq {
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		if skipped < offset {
			skipped++
			continue
		}
		list = append(list, d)
		if len(list) == limit {
			break
		}
	}
	respondList(h.baseHandler, ctx, list, limit, offset)
}

// @Summary Donation details
// @Tags donations
// @Router /api/donations/{id} [get]
func (h *DonationHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	d, err := h.donations.Get(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, d)
}

// @Summary Cancel a pending donation
// @Tags donations
// @Router /api/donations/{id}/cancel [post]
func (h *DonationHandler) Cancel(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	d, err := h.donations.Cancel(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, d)
}

// @Summary Accept a pending donation (NGO)
// @Tags donations
// @Router /api/donations/{id}/accept [post]
func (h *DonationHandler) Accept(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.matching.AcceptDonation(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Lifecycle history of a donation and its task
// @Tags donations
// @Router /api/donations/{id}/history [get]
func (h *DonationHandler) History(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.donations.History(stdCtx, actor(ctx), pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}
