package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
)

func seedDonation(t *testing.T, s *Store) *domain.Donation {
	t.Helper()
	d := &domain.Donation{
		DonorID:     "donor-1",
		FoodDetails: domain.FoodDetails{Name: "Soup", Category: "prepared", Quantity: 10, Unit: "servings"},
		Status:      domain.DonationPending,
	}
	require.NoError(t, s.Donations().Create(context.Background(), d))
	return d
}

func TestMatchHasSingleWinner(t *testing.T) {
	s := New()
	d := seedDonation(t, s)

	const contenders = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   []string
		stales int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ngo := fmt.Sprintf("ngo-%d", n)
			task := &domain.Task{ID: fmt.Sprintf("task-%d", n), NGOID: ngo, Status: domain.TaskAssigned}
			_, err := s.Donations().Match(context.Background(), d.ID, ngo, task)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, ngo)
			case errors.Is(err, repository.ErrStale):
				stales++
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Equal(t, contenders-1, stales)

	got, err := s.Donations().GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationAccepted, got.Status)
	require.NotNil(t, got.MatchedNGOID)
	assert.Equal(t, wins[0], *got.MatchedNGOID)
	assert.True(t, got.MatchConsistent())

	tasks, err := s.Tasks().List(context.Background(), repository.TaskFilter{DonationID: d.ID})
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "only the winning match creates a task")
}

func TestClaimHasSingleWinner(t *testing.T) {
	s := New()
	d := seedDonation(t, s)
	_, err := s.Donations().Match(context.Background(), d.ID, "ngo-1", &domain.Task{ID: "task-1", Status: domain.TaskAssigned})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := s.Tasks().Claim(context.Background(), "task-1", fmt.Sprintf("vol-%d", n)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	task, err := s.Tasks().GetByID(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskAccepted, task.Status)
	assert.NotNil(t, task.AssignedVolunteerID)
}

func TestClaimRespectsOffer(t *testing.T) {
	s := New()
	d := seedDonation(t, s)
	_, err := s.Donations().Match(context.Background(), d.ID, "ngo-1", &domain.Task{ID: "task-1", Status: domain.TaskAssigned})
	require.NoError(t, err)

	vol := "vol-1"
	_, err = s.Tasks().Offer(context.Background(), "task-1", &vol)
	require.NoError(t, err)

	_, err = s.Tasks().Claim(context.Background(), "task-1", "vol-2")
	assert.ErrorIs(t, err, repository.ErrStale)

	claimed, err := s.Tasks().Claim(context.Background(), "task-1", "vol-1")
	require.NoError(t, err)
	assert.True(t, claimed.AssignedTo("vol-1"))

	_, err = s.Tasks().Claim(context.Background(), "missing", "vol-1")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestReleaseRecordsRejection(t *testing.T) {
	s := New()
	d := seedDonation(t, s)
	_, err := s.Donations().Match(context.Background(), d.ID, "ngo-1", &domain.Task{ID: "task-1", Status: domain.TaskAssigned})
	require.NoError(t, err)

	vol := "vol-1"
	_, err = s.Tasks().Offer(context.Background(), "task-1", &vol)
	require.NoError(t, err)

	_, err = s.Tasks().Release(context.Background(), "task-1", "vol-2")
	assert.ErrorIs(t, err, repository.ErrStale, "only the offered volunteer can release")

	released, err := s.Tasks().Release(context.Background(), "task-1", "vol-1")
	require.NoError(t, err)
	assert.Nil(t, released.AssignedVolunteerID)
	assert.Equal(t, domain.TaskAssigned, released.Status)
	assert.Equal(t, []string{"vol-1"}, released.RejectedBy)

	_, err = s.Tasks().Release(context.Background(), "task-1", "vol-1")
	assert.ErrorIs(t, err, repository.ErrStale)
}

func TestAdvanceCascade(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return at })
	ctx := context.Background()

	require.NoError(t, s.Users().Create(ctx, &domain.User{
		ID:         "vol-1",
		Email:      "vol@example.com",
		Role:       domain.RoleVolunteer,
		IsVerified: true,
		Profile:    domain.VolunteerProfile{VehicleType: "bike", CompletedTasks: 2},
	}))
	d := seedDonation(t, s)
	_, err := s.Donations().Match(ctx, d.ID, "ngo-1", &domain.Task{ID: "task-1", Status: domain.TaskAssigned})
	require.NoError(t, err)
	_, err = s.Tasks().Claim(ctx, "task-1", "vol-1")
	require.NoError(t, err)

	_, err = s.Tasks().Advance(ctx, repository.TaskAdvance{
		TaskID: "task-1", VolunteerID: "vol-1", From: domain.TaskPickedUp, To: domain.TaskInTransit,
	})
	assert.ErrorIs(t, err, repository.ErrStale, "from must match the stored status")

	steps := []repository.TaskAdvance{
		{From: domain.TaskAccepted, To: domain.TaskPickedUp},
		{From: domain.TaskPickedUp, To: domain.TaskInTransit, DonationStatus: domain.DonationInTransit},
		{From: domain.TaskInTransit, To: domain.TaskDelivered, DonationStatus: domain.DonationDelivered, Complete: true},
	}
	for _, step := range steps {
		step.TaskID, step.VolunteerID = "task-1", "vol-1"
		_, err := s.Tasks().Advance(ctx, step)
		require.NoError(t, err, step.To)
	}

	task, err := s.Tasks().GetByID(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDelivered, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(at))

	donation, err := s.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationDelivered, donation.Status)

	vol, err := s.Users().GetByID(ctx, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, 3, vol.CompletedTasks())
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	d := seedDonation(t, s)

	got, err := s.Donations().GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	got.Status = domain.DonationCancelled

	again, err := s.Donations().GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationPending, again.Status)
}

func TestUserRepository(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "u1", Email: "a@example.com", Role: domain.RoleDonor}))
	err := s.Users().Create(ctx, &domain.User{Email: "A@example.com", Role: domain.RoleNGO})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	byEmail, err := s.Users().GetByEmail(ctx, "A@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	pending := false
	list, err := s.Users().List(ctx, repository.UserFilter{Verified: &pending})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	verified, err := s.Users().Verify(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	_, err = s.Users().Verify(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrStale)
	assert.ErrorIs(t, s.Users().DeletePending(ctx, "u1"), repository.ErrStale)
	assert.ErrorIs(t, s.Users().DeletePending(ctx, "nobody"), domain.ErrUserNotFound)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Sessions().Save(ctx, &domain.Session{ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	_, err := s.Sessions().Get(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = s.Sessions().Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, s.Sessions().Save(ctx, &domain.Session{ID: "s2", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Sessions().DeleteByUser(ctx, "u1"))
	_, err = s.Sessions().Get(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDonationListResumesAfterCursor(t *testing.T) {
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return clock })
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedDonation(t, s)
	}
	clock = clock.Add(time.Minute)
	newest := seedDonation(t, s)

	all, err := s.Donations().List(ctx, repository.DonationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, newest.ID, all[0].ID)

	rest, err := s.Donations().List(ctx, repository.DonationFilter{After: repository.CursorOf(all[1])})
	require.NoError(t, err)
	require.Len(t, rest, 2, "ties on createdAt are split by id")
	assert.Equal(t, all[2].ID, rest[0].ID)
	assert.Equal(t, all[3].ID, rest[1].ID)

	none, err := s.Donations().List(ctx, repository.DonationFilter{After: repository.CursorOf(all[3])})
	require.NoError(t, err)
	assert.Empty(t, none)
}
