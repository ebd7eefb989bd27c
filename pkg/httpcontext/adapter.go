package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/foodbridge/domain"
	appLogger "github.com/fastygo/foodbridge/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"

	// actorValue is the fasthttp user value under which the auth middleware stores the caller.
	actorValue = "foodbridge.actor"
)

type actorKey struct{}

// Adapter converts a fasthttp.RequestCtx into a stdlib context with a deadline,
// request id and the authenticated actor.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach builds the request context and echoes the request id in the response.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := RequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set(HeaderRequestID, reqID)

	if actor := ActorFrom(ctx); actor != nil {
		stdCtx = context.WithValue(stdCtx, actorKey{}, actor)
		stdCtx = appLogger.ContextWithUserID(stdCtx, actor.UserID)
	}
	return stdCtx, cancel
}

// SetActor stores the authenticated caller on the request.
func SetActor(ctx *fasthttp.RequestCtx, actor *domain.Actor) {
	ctx.SetUserValue(actorValue, actor)
}

// ActorFrom returns the caller stored by SetActor, or nil for anonymous requests.
func ActorFrom(ctx *fasthttp.RequestCtx) *domain.Actor {
	if ctx == nil {
		return nil
	}
	actor, _ := ctx.UserValue(actorValue).(*domain.Actor)
	return actor
}

// ActorFromContext returns the caller attached by Attach.
func ActorFromContext(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(*domain.Actor)
	return actor
}

// RequestID returns the inbound X-Request-ID, generating one when absent. The value is
// cached on the request so every caller sees the same id.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if id, ok := ctx.UserValue(HeaderRequestID).(string); ok {
		return id
	}
	id := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderRequestID)))
	if id == "" {
		id = uuid.NewString()
	}
	ctx.SetUserValue(HeaderRequestID, id)
	return id
}
