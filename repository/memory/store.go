// Package memory provides mutex-guarded in-process repositories. Every compare-and-set
// runs under the store lock, so concurrent callers observe the same single-winner
// semantics as the Postgres implementation.
package memory

import (
	"sync"
	"time"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

// Store holds all entities behind one lock so multi-entity transitions commit together.
type Store struct {
	mu sync.RWMutex

	users         map[string]*domain.User
	donations     map[string]*domain.Donation
	tasks         map[string]*domain.Task
	notifications []*domain.Notification
	events        []domain.Event
	sessions      map[string]*domain.Session

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]*domain.User),
		donations: make(map[string]*domain.Donation),
		tasks:     make(map[string]*domain.Task),
		sessions:  make(map[string]*domain.Session),
		now:       time.Now,
	}
}

// WithClock overrides the time source, mainly for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Donations() repository.DonationRepository         { return donationRepo{s} }
func (s *Store) Tasks() repository.TaskRepository                 { return taskRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Events() repository.EventRepository               { return eventRepo{s} }
func (s *Store) Sessions() repository.SessionRepository           { return sessionRepo{s} }

func page[T any](items []T, limit, offset int) []T {
	limit = repository.ClampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func strPtr(v string) *string {
	return &v
}

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return strPtr(*p)
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	t := *p
	return &t
}

func cloneCoords(p *domain.Coordinates) *domain.Coordinates {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func cloneLocation(l domain.Location) domain.Location {
	return domain.Location{Address: l.Address, Coordinates: cloneCoords(l.Coordinates)}
}
