package memory

import (
	"context"
	"sort"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

type taskRepo struct{ s *Store }

func cloneTask(t *domain.Task) *domain.Task {
	out := *t
	out.PickupLocation = cloneLocation(t.PickupLocation)
	out.DeliveryLocation = cloneLocation(t.DeliveryLocation)
	out.AssignedVolunteerID = cloneStrPtr(t.AssignedVolunteerID)
	out.CompletedAt = cloneTimePtr(t.CompletedAt)
	out.RejectedBy = append([]string(nil), t.RejectedBy...)
	return &out
}

func (r taskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (r taskRepo) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Task
	for _, t := range r.s.tasks {
		if filter.VolunteerID != "" {
			mine := t.AssignedTo(filter.VolunteerID)
			open := filter.IncludeOpen && t.Status == domain.TaskAssigned && t.AssignedVolunteerID == nil
			if !mine && !open {
				continue
			}
		}
		if filter.NGOID != "" && t.NGOID != filter.NGOID {
			continue
		}
		if filter.DonorID != "" && t.DonorID != filter.DonorID {
			continue
		}
		if filter.DonationID != "" && t.DonationID != filter.DonationID {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if s == t.Status {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, *cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r taskRepo) Offer(_ context.Context, id string, volunteerID *string) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskAssigned {
		return nil, repository.ErrStale
	}
	t.AssignedVolunteerID = cloneStrPtr(volunteerID)
	t.UpdatedAt = r.s.now()
	return cloneTask(t), nil
}

func (r taskRepo) Claim(_ context.Context, id, volunteerID string) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskAssigned || (t.AssignedVolunteerID != nil && *t.AssignedVolunteerID != volunteerID) {
		return nil, repository.ErrStale
	}
	t.Status = domain.TaskAccepted
	t.AssignedVolunteerID = strPtr(volunteerID)
	t.UpdatedAt = r.s.now()
	return cloneTask(t), nil
}

func (r taskRepo) Release(_ context.Context, id, volunteerID string) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskAssigned || !t.AssignedTo(volunteerID) {
		return nil, repository.ErrStale
	}
	t.AssignedVolunteerID = nil
	if !t.WasRejectedBy(volunteerID) {
		t.RejectedBy = append(t.RejectedBy, volunteerID)
	}
	t.UpdatedAt = r.s.now()
	return cloneTask(t), nil
}

func (r taskRepo) Advance(_ context.Context, step repository.TaskAdvance) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[step.TaskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != step.From || !t.AssignedTo(step.VolunteerID) {
		return nil, repository.ErrStale
	}
	at := step.At
	if at.IsZero() {
		at = r.s.now()
	}

	if step.DonationStatus != "" {
		d, ok := r.s.donations[t.DonationID]
		if !ok {
			return nil, domain.ErrDonationNotFound
		}
		d.Status = step.DonationStatus
		d.UpdatedAt = at
	}
	if step.Complete {
		if u, ok := r.s.users[step.VolunteerID]; ok {
			if p, ok := u.Profile.(domain.VolunteerProfile); ok {
				p.CompletedTasks++
				u.Profile = p
				u.UpdatedAt = at
			}
		}
		t.CompletedAt = &at
	}
	t.Status = step.To
	t.UpdatedAt = at
	return cloneTask(t), nil
}

func (r taskRepo) CountByStatus(_ context.Context) (map[domain.TaskStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[domain.TaskStatus]int)
	for _, t := range r.s.tasks {
		out[t.Status]++
	}
	return out, nil
}
