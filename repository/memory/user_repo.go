package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

type userRepo struct{ s *Store }

func cloneUser(u *domain.User) *domain.User {
	out := *u
	switch p := u.Profile.(type) {
	case domain.DonorProfile:
		p.Address = cloneLocation(p.Address)
		out.Profile = p
	case domain.NGOProfile:
		p.Address = cloneLocation(p.Address)
		out.Profile = p
	case domain.VolunteerProfile:
		p.CurrentArea = cloneCoords(p.CurrentArea)
		out.Profile = p
	}
	return &out
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.User
	for _, u := range r.s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Verified != nil && u.IsVerified != *filter.Verified {
			continue
		}
		out = append(out, *cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r userRepo) Verify(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if u.IsVerified {
		return nil, repository.ErrStale
	}
	u.IsVerified = true
	u.UpdatedAt = r.s.now()
	return cloneUser(u), nil
}

func (r userRepo) DeletePending(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.IsVerified {
		return repository.ErrStale
	}
	delete(r.s.users, id)
	return nil
}

func (r userRepo) CountByRole(_ context.Context) (map[domain.Role]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[domain.Role]int)
	for _, u := range r.s.users {
		out[u.Role]++
	}
	return out, nil
}
