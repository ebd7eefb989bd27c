package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository/memory"
	"github.com/fastygo/foodbridge/usecase/notification"
)

var root = &domain.Actor{UserID: "root", Role: domain.RoleAdmin, IsVerified: true}

func setup(t *testing.T) (*UseCase, *memory.Store) {
	t.Helper()
	store := memory.New()
	fanout := notification.NewFanout(store.Notifications(), store.Events(), nil)
	uc := New(store.Users(), store.Sessions(), store.Donations(), store.Tasks(), fanout, nil)

	ctx := context.Background()
	require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "root", Email: "root@example.com", Role: domain.RoleAdmin, IsVerified: true}))
	require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "ngo-1", Email: "ngo@example.com", Role: domain.RoleNGO,
		Profile: domain.NGOProfile{OrganizationName: "Food Aid", Capacity: 10}}))
	require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "vol-1", Email: "vol@example.com", Role: domain.RoleVolunteer,
		Profile: domain.VolunteerProfile{VehicleType: "car"}}))
	return uc, store
}

func TestPendingAndVerify(t *testing.T) {
	uc, store := setup(t)
	ctx := context.Background()

	pending, err := uc.PendingUsers(ctx, root, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	user, err := uc.Verify(ctx, root, "ngo-1")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	_, err = uc.Verify(ctx, root, "ngo-1")
	assert.ErrorIs(t, err, domain.ErrUserState)
	_, err = uc.Verify(ctx, root, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	pending, err = uc.PendingUsers(ctx, root, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "vol-1", pending[0].ID)

	notes, err := store.Notifications().ListByUser(ctx, "ngo-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyAccountVerified, notes[0].Kind)

	events, err := store.Events().ListByAggregate(ctx, domain.AggregateUser, "ngo-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventUserVerified, events[0].Name)
	assert.Equal(t, "root", events[0].ActorID)
}

func TestRejectRemovesPendingUser(t *testing.T) {
	uc, store := setup(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Sessions().Save(ctx, &domain.Session{ID: "s1", UserID: "vol-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, uc.Reject(ctx, root, "vol-1"))
	_, err := store.Users().GetByID(ctx, "vol-1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = store.Sessions().Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = uc.Verify(ctx, root, "ngo-1")
	require.NoError(t, err)
	assert.ErrorIs(t, uc.Reject(ctx, root, "ngo-1"), domain.ErrUserState, "verified accounts stay")
}

type closedUsers []string

func (c *closedUsers) DisconnectSession(string) int { return 0 }
func (c *closedUsers) DisconnectUser(id string) int { *c = append(*c, id); return 1 }

func TestRejectClosesLiveConnections(t *testing.T) {
	uc, _ := setup(t)
	closed := &closedUsers{}
	uc.WithDisconnector(closed)
	ctx := context.Background()

	require.NoError(t, uc.Reject(ctx, root, "vol-1"))
	assert.Equal(t, []string{"vol-1"}, []string(*closed))

	_, err := uc.Verify(ctx, root, "ngo-1")
	require.NoError(t, err)
	assert.Error(t, uc.Reject(ctx, root, "ngo-1"))
	assert.Len(t, *closed, 1, "failed rejections keep connections")
}

func TestAdminOnly(t *testing.T) {
	uc, store := setup(t)
	ctx := context.Background()
	ngo := &domain.Actor{UserID: "ngo-1", Role: domain.RoleNGO, IsVerified: true}

	_, err := uc.PendingUsers(ctx, ngo, 0, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = uc.Verify(ctx, ngo, "vol-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, uc.Reject(ctx, nil, "vol-1"), domain.ErrUnauthenticated)
	_, err = uc.Stats(ctx, ngo)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	vol, err := store.Users().GetByID(ctx, "vol-1")
	require.NoError(t, err)
	assert.False(t, vol.IsVerified)
}

func TestStats(t *testing.T) {
	uc, store := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Donations().Create(ctx, &domain.Donation{DonorID: "d", Status: domain.DonationPending}))
	require.NoError(t, store.Donations().Create(ctx, &domain.Donation{DonorID: "d", Status: domain.DonationCancelled}))

	stats, err := uc.Stats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users[domain.RoleAdmin])
	assert.Equal(t, 1, stats.Users[domain.RoleNGO])
	assert.Equal(t, 1, stats.Donations[domain.DonationPending])
	assert.Equal(t, 1, stats.Donations[domain.DonationCancelled])
	assert.Empty(t, stats.Tasks)
}
