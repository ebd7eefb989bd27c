package matching

import (
	"context"
	"sort"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

type candidate struct {
	user     domain.User
	distance float64
	located  bool
}

// pickVolunteer ranks verified volunteers nearest first, then by fewest completed
// deliveries, then by id. Volunteers without a known position rank after every
// located one. Anyone who already rejected the task is skipped.
func (uc *UseCase) pickVolunteer(ctx context.Context, task *domain.Task) (*domain.User, error) {
	verified := true
	var pool []candidate
	for offset := 0; ; offset += repository.MaxLimit {
		page, err := uc.users.List(ctx, repository.UserFilter{
			Role:     domain.RoleVolunteer,
			Verified: &verified,
			Limit:    repository.MaxLimit,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		for _, u := range page {
			if task.WasRejectedBy(u.ID) {
				continue
			}
			c := candidate{user: u}
			if pos, ok := u.Coordinates(); ok && task.PickupLocation.HasCoordinates() {
				c.distance = domain.DistanceKm(pos, *task.PickupLocation.Coordinates)
				c.located = true
				if uc.cfg.PickupRadiusKm > 0 && c.distance > uc.cfg.PickupRadiusKm {
					continue
				}
			}
			pool = append(pool, c)
		}
		if len(page) < repository.MaxLimit {
			break
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.located != b.located {
			return a.located
		}
		if a.located && a.distance != b.distance {
			return a.distance < b.distance
		}
		if ac, bc := a.user.CompletedTasks(), b.user.CompletedTasks(); ac != bc {
			return ac < bc
		}
		return a.user.ID < b.user.ID
	})
	best := pool[0].user
	return &best, nil
}
