package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/fastygo/foodbridge/domain"
)

// CommandHandler executes a named command on behalf of actor. Payload is the raw
// JSON sent by the client and may be empty.
type CommandHandler func(ctx context.Context, actor *domain.Actor, payload json.RawMessage) (interface{}, error)

// Dispatcher routes named commands (such as inbound real-time messages) to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	public   map[string]bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]CommandHandler),
		public:   make(map[string]bool),
	}
}

// Register adds a handler that requires an authenticated actor.
func (d *Dispatcher) Register(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = handler
	delete(d.public, name)
}

// RegisterPublic adds a handler callable without an actor.
func (d *Dispatcher) RegisterPublic(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = handler
	d.public[name] = true
}

// Dispatch runs the handler registered under name.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, actor *domain.Actor, payload json.RawMessage) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.handlers[name]
	public := d.public[name]
	d.mu.RUnlock()

	if !ok {
		return nil, domain.Validation("unknown command %q", name)
	}
	if !public && (actor == nil || actor.UserID == "") {
		return nil, domain.ErrUnauthenticated
	}
	return handler(ctx, actor, payload)
}

// Commands lists registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
