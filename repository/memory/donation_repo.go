package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

type donationRepo struct{ s *Store }

func cloneDonation(d *domain.Donation) *domain.Donation {
	out := *d
	out.FoodDetails.ExpiresAt = cloneTimePtr(d.FoodDetails.ExpiresAt)
	out.Location = cloneLocation(d.Location)
	out.MatchedNGOID = cloneStrPtr(d.MatchedNGOID)
	return &out
}

func (r donationRepo) Create(_ context.Context, donation *domain.Donation) error {
	if donation == nil {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	now := r.s.now()
	donation.CreatedAt, donation.UpdatedAt = now, now
	r.s.donations[donation.ID] = cloneDonation(donation)
	return nil
}

func (r donationRepo) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.donations[id]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	return cloneDonation(d), nil
}

func matchesStatus(status domain.DonationStatus, allowed []domain.DonationStatus) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func (r donationRepo) List(_ context.Context, filter repository.DonationFilter) ([]domain.Donation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Donation
	for _, d := range r.s.donations {
		if filter.DonorID != "" && d.DonorID != filter.DonorID {
			continue
		}
		if filter.MatchedNGOID != "" && (d.MatchedNGOID == nil || *d.MatchedNGOID != filter.MatchedNGOID) {
			continue
		}
		if filter.Category != "" && d.FoodDetails.Category != filter.Category {
			continue
		}
		if !matchesStatus(d.Status, filter.Statuses) {
			continue
		}
		if !filter.After.Follows(*d) {
			continue
		}
		out = append(out, *cloneDonation(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r donationRepo) Transition(_ context.Context, id string, from, to domain.DonationStatus) (*domain.Donation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.donations[id]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	if d.Status != from {
		return nil, repository.ErrStale
	}
	d.Status = to
	d.UpdatedAt = r.s.now()
	return cloneDonation(d), nil
}

func (r donationRepo) Match(_ context.Context, id, ngoID string, task *domain.Task) (*domain.Donation, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.donations[id]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	if d.Status != domain.DonationPending {
		return nil, repository.ErrStale
	}
	now := r.s.now()
	d.Status = domain.DonationAccepted
	d.MatchedNGOID = strPtr(ngoID)
	d.UpdatedAt = now

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.DonationID = d.ID
	task.CreatedAt, task.UpdatedAt = now, now
	r.s.tasks[task.ID] = cloneTask(task)
	return cloneDonation(d), nil
}

func (r donationRepo) CountByStatus(_ context.Context) (map[domain.DonationStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[domain.DonationStatus]int)
	for _, d := range r.s.donations {
		out[d.Status]++
	}
	return out, nil
}
