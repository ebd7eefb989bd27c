package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/repository/memory"
)

type recorder struct {
	mu     sync.Mutex
	notes  []domain.Notification
	events []domain.Event
}

func (r *recorder) Notify(_ context.Context, notes ...domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notes...)
}

func (r *recorder) Record(_ context.Context, events ...domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) notesFor(userID, kind string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.notes {
		if n.UserID == userID && n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes, r.events = nil, nil
}

type fixture struct {
	store *memory.Store
	rec   *recorder
	uc    *UseCase

	donor *domain.Actor
	ngoA  *domain.Actor
	ngoB  *domain.Actor
}

var (
	pickup   = domain.Coordinates{52.5200, 13.4050}
	shelter  = domain.Coordinates{52.5300, 13.4200}
	testTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := memory.New().WithClock(func() time.Time { return testTime })
	rec := &recorder{}
	f := &fixture{
		store: store,
		rec:   rec,
		uc:    New(store.Donations(), store.Tasks(), store.Users(), rec, cfg, nil).WithClock(func() time.Time { return testTime }),
		donor: &domain.Actor{UserID: "donor-1", Role: domain.RoleDonor, IsVerified: true},
		ngoA:  &domain.Actor{UserID: "ngo-a", Role: domain.RoleNGO, IsVerified: true},
		ngoB:  &domain.Actor{UserID: "ngo-b", Role: domain.RoleNGO, IsVerified: true},
	}
	f.addUser(t, &domain.User{ID: "donor-1", Email: "donor@example.com", Role: domain.RoleDonor, IsVerified: true,
		Profile: domain.DonorProfile{BusinessName: "Corner Bakery", Address: domain.Location{Address: "1 Baker St", Coordinates: &pickup}}})
	for _, id := range []string{"ngo-a", "ngo-b"} {
		f.addUser(t, &domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleNGO, IsVerified: true,
			Profile: domain.NGOProfile{OrganizationName: "Shelter " + id, Capacity: 50, Address: domain.Location{Address: "9 Shelter Rd", Coordinates: &shelter}}})
	}
	return f
}

func (f *fixture) addUser(t *testing.T, u *domain.User) {
	t.Helper()
	require.NoError(t, f.store.Users().Create(context.Background(), u))
}

func (f *fixture) addVolunteer(t *testing.T, id string, area *domain.Coordinates, completed int) *domain.Actor {
	t.Helper()
	f.addUser(t, &domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleVolunteer, IsVerified: true,
		Profile: domain.VolunteerProfile{VehicleType: "bike", CurrentArea: area, CompletedTasks: completed}})
	return &domain.Actor{UserID: id, Role: domain.RoleVolunteer, IsVerified: true}
}

func (f *fixture) addDonation(t *testing.T) *domain.Donation {
	t.Helper()
	d := &domain.Donation{
		DonorID:     "donor-1",
		FoodDetails: domain.FoodDetails{Name: "Bread rolls", Category: "bakery", Quantity: 12, Unit: "items"},
		Location:    domain.Location{Address: "1 Baker St", Coordinates: &pickup},
		Status:      domain.DonationPending,
	}
	require.NoError(t, f.store.Donations().Create(context.Background(), d))
	return d
}

func coords(lat, lng float64) *domain.Coordinates {
	c := domain.Coordinates{lat, lng}
	return &c
}

func TestAcceptDonationCreatesTask(t *testing.T) {
	f := newFixture(t, Config{})
	f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	d := f.addDonation(t)

	res, err := f.uc.AcceptDonation(context.Background(), f.ngoA, d.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DonationAccepted, res.Donation.Status)
	require.NotNil(t, res.Donation.MatchedNGOID)
	assert.Equal(t, "ngo-a", *res.Donation.MatchedNGOID)

	task := res.Task
	assert.Equal(t, domain.TaskAssigned, task.Status)
	assert.Regexp(t, `^TASK-20240501-[0-9A-F]{6}$`, task.TaskID)
	assert.Equal(t, d.ID, task.DonationID)
	assert.Equal(t, "ngo-a", task.NGOID)
	assert.Equal(t, "donor-1", task.DonorID)
	assert.Equal(t, "9 Shelter Rd", task.DeliveryLocation.Address)
	assert.Greater(t, task.Distance, 0.0)
	assert.Greater(t, task.EstimatedTime, 0)
	assert.True(t, task.AssignedTo("vol-1"), "nearest volunteer receives the offer")

	assert.Len(t, f.rec.notesFor("donor-1", domain.NotifyDonationAccepted), 1)
	assert.Len(t, f.rec.notesFor("ngo-a", domain.NotifyDonationAccepted), 1)
	offers := f.rec.notesFor("vol-1", domain.NotifyTaskAssigned)
	require.Len(t, offers, 1)
	assert.Equal(t, task.ID, offers[0].RelatedID)
}

func TestAcceptDonationConcurrentNGOs(t *testing.T) {
	f := newFixture(t, Config{})
	d := f.addDonation(t)

	var (
		wg      sync.WaitGroup
		results = make([]error, 2)
	)
	for i, actor := range []*domain.Actor{f.ngoA, f.ngoB} {
		wg.Add(1)
		go func(i int, actor *domain.Actor) {
			defer wg.Done()
			_, results[i] = f.uc.AcceptDonation(context.Background(), actor, d.ID)
		}(i, actor)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDonationTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, taken)

	tasks, err := f.store.Tasks().List(context.Background(), repository.TaskFilter{DonationID: d.ID})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestAcceptDonationRejectsNonPending(t *testing.T) {
	f := newFixture(t, Config{})
	d := f.addDonation(t)
	_, err := f.store.Donations().Transition(context.Background(), d.ID, domain.DonationPending, domain.DonationCancelled)
	require.NoError(t, err)

	_, err = f.uc.AcceptDonation(context.Background(), f.ngoA, d.ID)
	assert.ErrorIs(t, err, domain.ErrDonationClosed)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
}

func TestAuthorizationFailuresDoNotMutate(t *testing.T) {
	f := newFixture(t, Config{})
	vol := f.addVolunteer(t, "vol-1", nil, 0)
	d := f.addDonation(t)
	ctx := context.Background()

	_, err := f.uc.AcceptDonation(ctx, nil, d.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.uc.AcceptDonation(ctx, f.donor, d.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.AcceptDonation(ctx, vol, d.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	unverified := &domain.Actor{UserID: "ngo-a", Role: domain.RoleNGO}
	_, err = f.uc.AcceptDonation(ctx, unverified, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotVerified)

	got, err := f.store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationPending, got.Status)
	assert.Nil(t, got.MatchedNGOID)
	assert.Empty(t, f.rec.notes)
	assert.Empty(t, f.rec.events)

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)

	_, err = f.uc.AdvanceTask(ctx, f.ngoA, res.Task.ID, domain.TaskPickedUp)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.uc.AssignVolunteer(ctx, f.ngoA, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeliveryLifecycle(t *testing.T) {
	f := newFixture(t, Config{})
	vol := f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 4)
	d := f.addDonation(t)
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)
	taskID := res.Task.ID

	accepted, err := f.uc.AcceptTask(ctx, vol, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskAccepted, accepted.Status)
	assert.Len(t, f.rec.notesFor("donor-1", domain.NotifyTaskAccepted), 1)
	assert.Len(t, f.rec.notesFor("ngo-a", domain.NotifyTaskAccepted), 1)

	_, err = f.uc.AdvanceTask(ctx, vol, taskID, domain.TaskInTransit)
	assert.ErrorIs(t, err, domain.ErrTaskState, "cannot skip picked_up")

	_, err = f.uc.AdvanceTask(ctx, vol, taskID, domain.TaskPickedUp)
	require.NoError(t, err)

	_, err = f.uc.AdvanceTask(ctx, vol, taskID, domain.TaskInTransit)
	require.NoError(t, err)
	donation, err := f.store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationInTransit, donation.Status)

	done, err := f.uc.AdvanceTask(ctx, vol, taskID, domain.TaskDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDelivered, done.Status)
	require.NotNil(t, done.CompletedAt)

	donation, err = f.store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationDelivered, donation.Status)
	assert.True(t, donation.MatchConsistent())

	user, err := f.store.Users().GetByID(ctx, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, 5, user.CompletedTasks())

	assert.Len(t, f.rec.notesFor("donor-1", domain.NotifyDonationDelivered), 1)
	assert.Len(t, f.rec.notesFor("ngo-a", domain.NotifyDonationDelivered), 1)
	assert.Len(t, f.rec.notesFor("vol-1", domain.NotifyDonationDelivered), 1)

	_, err = f.uc.AdvanceTask(ctx, vol, taskID, domain.TaskDelivered)
	assert.ErrorIs(t, err, domain.ErrTaskState, "delivered is terminal")

	_, err = f.uc.AdvanceTask(ctx, vol, taskID, domain.TaskStatus("teleported"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestAdvanceByOtherVolunteerIsForbidden(t *testing.T) {
	f := newFixture(t, Config{})
	vol := f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	other := f.addVolunteer(t, "vol-2", nil, 0)
	d := f.addDonation(t)
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)
	_, err = f.uc.AcceptTask(ctx, vol, res.Task.ID)
	require.NoError(t, err)

	_, err = f.uc.AdvanceTask(ctx, other, res.Task.ID, domain.TaskPickedUp)
	assert.ErrorIs(t, err, domain.ErrTaskForbidden)

	_, err = f.uc.AdvanceTask(ctx, vol, "missing", domain.TaskPickedUp)
	assert.ErrorIs(t, err, domain.ErrTaskForbidden)

	_, err = f.uc.AcceptTask(ctx, other, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskTaken)

	_, err = f.uc.AcceptTask(ctx, vol, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskState, "already accepted by the caller")
}

func TestAcceptTaskOfferedToSomeoneElse(t *testing.T) {
	f := newFixture(t, Config{})
	f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	far := f.addVolunteer(t, "vol-2", coords(48.1351, 11.5820), 0)
	d := f.addDonation(t)

	res, err := f.uc.AcceptDonation(context.Background(), f.ngoA, d.ID)
	require.NoError(t, err)
	require.True(t, res.Task.AssignedTo("vol-1"))

	_, err = f.uc.AcceptTask(context.Background(), far, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskForbidden)
}

func TestAcceptTaskHidesExistence(t *testing.T) {
	f := newFixture(t, Config{})
	f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	far := f.addVolunteer(t, "vol-2", coords(48.1351, 11.5820), 0)
	d := f.addDonation(t)
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)

	_, foreign := f.uc.AcceptTask(ctx, far, res.Task.ID)
	_, missing := f.uc.AcceptTask(ctx, far, "does-not-exist")
	require.Error(t, foreign)
	require.Error(t, missing)
	assert.Equal(t, foreign, missing)
	assert.ErrorIs(t, missing, domain.ErrTaskForbidden)
}

func TestRejectWithSingleVolunteerLeavesTaskOpen(t *testing.T) {
	f := newFixture(t, Config{})
	vol := f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	d := f.addDonation(t)
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)
	require.True(t, res.Task.AssignedTo("vol-1"))

	task, err := f.uc.RejectTask(ctx, vol, res.Task.ID)
	require.NoError(t, err)
	assert.Nil(t, task.AssignedVolunteerID)
	assert.Equal(t, domain.TaskAssigned, task.Status)
	assert.Len(t, f.rec.notesFor("ngo-a", domain.NotifyTaskRejected), 1)

	_, err = f.uc.RejectTask(ctx, vol, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskForbidden, "no longer offered to the caller")

	_, err = f.uc.RejectTask(ctx, vol, "missing")
	assert.ErrorIs(t, err, domain.ErrTaskForbidden)

	late := f.addVolunteer(t, "vol-3", nil, 0)
	open, err := f.uc.ListTasks(ctx, late, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, open, 1, "open tasks are listed for every volunteer")

	claimed, err := f.uc.AcceptTask(ctx, late, res.Task.ID)
	require.NoError(t, err)
	assert.True(t, claimed.AssignedTo("vol-3"))
}

func TestRejectReoffersToNextVolunteer(t *testing.T) {
	f := newFixture(t, Config{})
	first := f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	f.addVolunteer(t, "vol-2", coords(52.6000, 13.5000), 0)
	d := f.addDonation(t)
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)
	require.True(t, res.Task.AssignedTo("vol-1"))
	f.rec.reset()

	task, err := f.uc.RejectTask(ctx, first, res.Task.ID)
	require.NoError(t, err)
	assert.True(t, task.AssignedTo("vol-2"))
	assert.Equal(t, []string{"vol-1"}, task.RejectedBy)

	offers := f.rec.notesFor("vol-2", domain.NotifyTaskAssigned)
	require.Len(t, offers, 1)
	assert.Equal(t, task.ID, offers[0].RelatedID)

	stored, err := f.store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.AssignedTo("vol-2"))
}

func TestVolunteerRanking(t *testing.T) {
	f := newFixture(t, Config{})
	f.addVolunteer(t, "vol-unlocated", nil, 0)
	f.addVolunteer(t, "vol-far", coords(52.7000, 13.8000), 0)
	f.addVolunteer(t, "vol-near-busy", coords(52.5201, 13.4051), 9)
	f.addVolunteer(t, "vol-near-fresh", coords(52.5201, 13.4051), 1)
	f.addUser(t, &domain.User{ID: "vol-unverified", Email: "u@example.com", Role: domain.RoleVolunteer,
		Profile: domain.VolunteerProfile{VehicleType: "car", CurrentArea: &pickup}})

	task := &domain.Task{ID: "t1", PickupLocation: domain.Location{Coordinates: &pickup}}
	best, err := f.uc.pickVolunteer(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "vol-near-fresh", best.ID, "equal distance breaks ties on completed deliveries")

	task.RejectedBy = []string{"vol-near-fresh", "vol-near-busy"}
	best, err = f.uc.pickVolunteer(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "vol-far", best.ID, "located volunteers rank before unlocated ones")

	task.RejectedBy = append(task.RejectedBy, "vol-far")
	best, err = f.uc.pickVolunteer(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "vol-unlocated", best.ID)

	task.RejectedBy = append(task.RejectedBy, "vol-unlocated")
	best, err = f.uc.pickVolunteer(context.Background(), task)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestPickupRadiusExcludesFarVolunteers(t *testing.T) {
	f := newFixture(t, Config{PickupRadiusKm: 5})
	f.addVolunteer(t, "vol-far", coords(48.1351, 11.5820), 0)

	task := &domain.Task{ID: "t1", PickupLocation: domain.Location{Coordinates: &pickup}}
	best, err := f.uc.pickVolunteer(context.Background(), task)
	require.NoError(t, err)
	assert.Nil(t, best)

	f.addVolunteer(t, "vol-somewhere", nil, 0)
	best, err = f.uc.pickVolunteer(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "vol-somewhere", best.ID)
}

func TestAssignVolunteerByAdmin(t *testing.T) {
	f := newFixture(t, Config{})
	d := f.addDonation(t)
	admin := &domain.Actor{UserID: "root", Role: domain.RoleAdmin, IsVerified: true}
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Task.AssignedVolunteerID, "no volunteers registered yet")

	f.addVolunteer(t, "vol-1", nil, 0)
	task, err := f.uc.AssignVolunteer(ctx, admin, res.Task.ID)
	require.NoError(t, err)
	assert.True(t, task.AssignedTo("vol-1"))
}

func TestTaskVisibility(t *testing.T) {
	f := newFixture(t, Config{})
	vol := f.addVolunteer(t, "vol-1", coords(52.5210, 13.4060), 0)
	other := f.addVolunteer(t, "vol-2", coords(48.1351, 11.5820), 0)
	d := f.addDonation(t)
	ctx := context.Background()

	res, err := f.uc.AcceptDonation(ctx, f.ngoA, d.ID)
	require.NoError(t, err)

	_, err = f.uc.GetTask(ctx, vol, res.Task.ID)
	assert.NoError(t, err)
	_, err = f.uc.GetTask(ctx, f.donor, res.Task.ID)
	assert.NoError(t, err)
	_, err = f.uc.GetTask(ctx, f.ngoB, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = f.uc.GetTask(ctx, other, res.Task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	list, err := f.uc.ListTasks(ctx, other, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.uc.ListTasks(ctx, f.ngoA, []domain.TaskStatus{domain.TaskAssigned}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
