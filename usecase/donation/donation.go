package donation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/usecase"
)

type UseCase struct {
	donations repository.DonationRepository
	tasks     repository.TaskRepository
	users     repository.UserRepository
	events    repository.EventRepository
	notifier  usecase.Notifier
	now       func() time.Time
	logger    *zap.Logger
}

func New(
	donations repository.DonationRepository,
	tasks repository.TaskRepository,
	users repository.UserRepository,
	events repository.EventRepository,
	notifier usecase.Notifier,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = usecase.NopNotifier{}
	}
	return &UseCase{
		donations: donations,
		tasks:     tasks,
		users:     users,
		events:    events,
		notifier:  notifier,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the time source used for urgency and expiry checks.
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	if now != nil {
		uc.now = now
	}
	return uc
}

type CreateInput struct {
	FoodDetails domain.FoodDetails
	Location    domain.Location
}

// Create lists a new pending donation owned by the calling donor. Without an explicit
// location the donor's business address is used.
func (uc *UseCase) Create(ctx context.Context, actor *domain.Actor, in CreateInput) (*domain.Donation, error) {
	if err := domain.AuthorizeVerified(actor, domain.RoleDonor); err != nil {
		return nil, err
	}

	food := in.FoodDetails
	food.Name = strings.TrimSpace(food.Name)
	if err := food.Validate(); err != nil {
		return nil, err
	}
	now := uc.now()
	if food.ExpiresAt != nil && !food.ExpiresAt.After(now) {
		return nil, domain.Validation("expiresAt must be in the future")
	}

	location, err := uc.resolveLocation(ctx, actor.UserID, in.Location)
	if err != nil {
		return nil, err
	}

	d := &domain.Donation{
		ID:          uuid.NewString(),
		DonorID:     actor.UserID,
		FoodDetails: food,
		Location:    location,
		Status:      domain.DonationPending,
	}
	if err := uc.donations.Create(ctx, d); err != nil {
		return nil, err
	}
	d.Urgency = d.UrgencyAt(now)

	logger.FromContext(ctx, uc.logger).Info("donation created",
		zap.String("donation_id", d.ID),
		zap.String("category", d.FoodDetails.Category))
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: d.ID,
		Kind:        domain.AggregateDonation,
		Name:        domain.EventDonationCreated,
		ActorID:     actor.UserID,
		Metadata:    map[string]string{"category": d.FoodDetails.Category},
	})
	return d, nil
}

func (uc *UseCase) resolveLocation(ctx context.Context, donorID string, loc domain.Location) (domain.Location, error) {
	loc.Address = strings.TrimSpace(loc.Address)
	if loc.Coordinates != nil && !loc.Coordinates.Valid() {
		return loc, domain.Validation("location coordinates out of range")
	}
	if loc.Address != "" || loc.HasCoordinates() {
		return loc, nil
	}

	donor, err := uc.users.GetByID(ctx, donorID)
	if err != nil {
		return loc, err
	}
	if p, ok := donor.Profile.(domain.DonorProfile); ok && (p.Address.Address != "" || p.Address.HasCoordinates()) {
		return p.Address, nil
	}
	return loc, domain.Validation("location is required")
}

// AvailableQuery filters pending donations. Near and RadiusKm apply together; a zero
// radius disables the distance filter.
type AvailableQuery struct {
	Category string
	Urgency  domain.Urgency
	Near     *domain.Coordinates
	RadiusKm float64
	PageSize int
}

// Available returns a lazy sequence over pending donations, newest first. Each range
// over the sequence re-reads storage from the start, so it is restartable; it ends
// when storage has no more pending donations. Pages resume from the last donation
// read, so donations leaving the pending set mid-iteration do not shift later pages.
func (uc *UseCase) Available(ctx context.Context, actor *domain.Actor, q AvailableQuery) (iter.Seq2[domain.Donation, error], error) {
	if err := domain.Authorize(actor, domain.RoleNGO, domain.RoleAdmin); err != nil {
		return nil, err
	}
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	if q.Urgency != "" && !q.Urgency.Valid() {
		return nil, domain.Validation("unknown urgency %q", q.Urgency)
	}
	if q.Near != nil && !q.Near.Valid() {
		return nil, domain.Validation("reference point out of range")
	}
	if q.RadiusKm < 0 {
		return nil, domain.Validation("radiusKm must not be negative")
	}
	pageSize := repository.ClampLimit(q.PageSize)

	return func(yield func(domain.Donation, error) bool) {
		now := uc.now()
		var after *repository.DonationCursor
		for {
			page, err := uc.donations.List(ctx, repository.DonationFilter{
				Statuses: []domain.DonationStatus{domain.DonationPending},
				Category: q.Category,
				After:    after,
				Limit:    pageSize,
			})
			if err != nil {
				yield(domain.Donation{}, err)
				return
			}
			if len(page) > 0 {
				after = repository.CursorOf(page[len(page)-1])
			}
			for _, d := range page {
				d.Urgency = d.UrgencyAt(now)
				if !q.matches(d) {
					continue
				}
				if !yield(d, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
		}
	}, nil
}

func (q AvailableQuery) matches(d domain.Donation) bool {
	if q.Urgency != "" && d.Urgency != q.Urgency {
		return false
	}
	if q.Near != nil && q.RadiusKm > 0 {
		if !d.Location.HasCoordinates() {
			return false
		}
		if domain.DistanceKm(*q.Near, *d.Location.Coordinates) > q.RadiusKm {
			return false
		}
	}
	return true
}

// ListForUser returns the donations the caller's role may see: donors their own,
// NGOs those matched to them, admins everything.
func (uc *UseCase) ListForUser(ctx context.Context, actor *domain.Actor, statuses []domain.DonationStatus, limit, offset int) ([]domain.Donation, error) {
	if err := domain.Authorize(actor, domain.RoleDonor, domain.RoleNGO, domain.RoleAdmin); err != nil {
		return nil, err
	}
	filter := repository.DonationFilter{Statuses: statuses, Limit: limit, Offset: offset}
	switch actor.Role {
	case domain.RoleDonor:
		filter.DonorID = actor.UserID
	case domain.RoleNGO:
		filter.MatchedNGOID = actor.UserID
	}

	list, err := uc.donations.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	for i := range list {
		list[i].Urgency = list[i].UrgencyAt(now)
	}
	return list, nil
}

// Get returns a donation when the caller may see it; otherwise NotFound.
func (uc *UseCase) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.Donation, error) {
	if err := domain.Authorize(actor, domain.RoleDonor, domain.RoleNGO, domain.RoleAdmin); err != nil {
		return nil, err
	}
	d, err := uc.donations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.VisibleTo(actor) {
		return nil, domain.ErrDonationNotFound
	}
	d.Urgency = d.UrgencyAt(uc.now())
	return d, nil
}

// Cancel withdraws a pending donation. Unknown ids and other donors' donations
// produce the same authorization error.
func (uc *UseCase) Cancel(ctx context.Context, actor *domain.Actor, id string) (*domain.Donation, error) {
	if err := domain.AuthorizeVerified(actor, domain.RoleDonor); err != nil {
		return nil, err
	}

	current, err := uc.donations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			return nil, domain.ErrDonationForbidden
		}
		return nil, err
	}
	if current.DonorID != actor.UserID {
		return nil, domain.ErrDonationForbidden
	}
	if current.Status != domain.DonationPending {
		return nil, domain.ErrDonationState
	}

	cancelled, err := uc.donations.Transition(ctx, id, domain.DonationPending, domain.DonationCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrDonationState
		}
		return nil, err
	}
	cancelled.Urgency = cancelled.UrgencyAt(uc.now())

	uc.notifier.Notify(ctx, domain.Notification{
		UserID:    actor.UserID,
		Title:     "Donation cancelled",
		Message:   fmt.Sprintf("Your donation %q was cancelled.", displayName(cancelled)),
		Kind:      domain.NotifyDonationCancelled,
		RelatedID: cancelled.ID,
	})
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: cancelled.ID,
		Kind:        domain.AggregateDonation,
		Name:        domain.EventDonationCancelled,
		ActorID:     actor.UserID,
	})
	return cancelled, nil
}

// History returns the lifecycle events of a visible donation and of its delivery task,
// oldest first.
func (uc *UseCase) History(ctx context.Context, actor *domain.Actor, id string) ([]domain.Event, error) {
	d, err := uc.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	events, err := uc.events.ListByAggregate(ctx, domain.AggregateDonation, d.ID)
	if err != nil {
		return nil, err
	}

	tasks, err := uc.tasks.List(ctx, repository.TaskFilter{DonationID: d.ID, Limit: 1})
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		taskEvents, err := uc.events.ListByAggregate(ctx, domain.AggregateTask, t.ID)
		if err != nil {
			return nil, err
		}
		events = append(events, taskEvents...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func displayName(d *domain.Donation) string {
	if d.FoodDetails.Name != "" {
		return d.FoodDetails.Name
	}
	return d.FoodDetails.Category
}
