package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.s.now()
	}
	for _, existing := range r.s.notifications {
		if existing.ID == n.ID {
			return nil
		}
	}
	cp := *n
	r.s.notifications = append(r.s.notifications, &cp)
	return nil
}

func (r notificationRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			out = append(out, *n)
		}
	}
	return page(out, limit, offset), nil
}

func (r notificationRepo) find(userID, id string) *domain.Notification {
	for _, n := range r.s.notifications {
		if n.ID == id && n.UserID == userID {
			return n
		}
	}
	return nil
}

func (r notificationRepo) SetRead(_ context.Context, userID, id string, read bool) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := r.find(userID, id)
	if n == nil {
		return nil, domain.ErrNotificationNotFound
	}
	n.IsRead = read
	cp := *n
	return &cp, nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.notifications {
		if n.ID == id && n.UserID == userID {
			r.s.notifications = append(r.s.notifications[:i], r.s.notifications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (r notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Append(_ context.Context, event domain.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.s.now()
	}
	r.s.events = append(r.s.events, event)
	return nil
}

func (r eventRepo) ListByAggregate(_ context.Context, kind, aggregateID string) ([]domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Event
	for _, e := range r.s.events {
		if e.Kind == kind && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Get(_ context.Context, id string) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.IsExpired(r.s.now()) {
		return nil, domain.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r sessionRepo) Save(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

func (r sessionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r sessionRepo) Extend(_ context.Context, id string, ttlSeconds int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.ExpiresAt = r.s.now().Add(time.Duration(ttlSeconds) * time.Second)
	return nil
}

func (r sessionRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

var (
	_ repository.NotificationRepository = notificationRepo{}
	_ repository.EventRepository        = eventRepo{}
	_ repository.SessionRepository      = sessionRepo{}
)
