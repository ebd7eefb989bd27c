// Package matching turns an NGO's acceptance of a donation into a delivery task and
// drives that task through volunteer assignment and delivery.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/usecase"
)

type Config struct {
	AverageSpeedKmh float64
	// PickupRadiusKm excludes volunteers with a known position farther than this from the
	// pickup point. Zero disables the limit.
	PickupRadiusKm float64
}

type UseCase struct {
	donations repository.DonationRepository
	tasks     repository.TaskRepository
	users     repository.UserRepository
	notifier  usecase.Notifier
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

func New(
	donations repository.DonationRepository,
	tasks repository.TaskRepository,
	users repository.UserRepository,
	notifier usecase.Notifier,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = usecase.NopNotifier{}
	}
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 30
	}
	return &UseCase{
		donations: donations,
		tasks:     tasks,
		users:     users,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	if now != nil {
		uc.now = now
	}
	return uc
}

type AcceptResult struct {
	Donation *domain.Donation `json:"donation"`
	Task     *domain.Task     `json:"task"`
}

// AcceptDonation claims a pending donation for the calling NGO. The status check, the
// NGO assignment and the task insert commit as one compare-and-set; concurrent callers
// that lose receive ErrDonationTaken.
func (uc *UseCase) AcceptDonation(ctx context.Context, actor *domain.Actor, donationID string) (*AcceptResult, error) {
	if err := domain.AuthorizeVerified(actor, domain.RoleNGO); err != nil {
		return nil, err
	}

	current, err := uc.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.DonationPending {
		return nil, donationConflict(current)
	}

	ngo, err := uc.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	task := uc.buildTask(current, ngo)
	matched, err := uc.donations.Match(ctx, donationID, actor.UserID, task)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, uc.classifyDonation(ctx, donationID)
		}
		return nil, err
	}
	matched.Urgency = matched.UrgencyAt(uc.now())

	log := logger.FromContext(ctx, uc.logger)
	log.Info("donation accepted",
		zap.String("donation_id", matched.ID),
		zap.String("ngo_id", actor.UserID),
		zap.String("task_id", task.ID))

	name := foodName(matched)
	uc.notifier.Notify(ctx,
		domain.Notification{
			UserID:    matched.DonorID,
			Title:     "Donation accepted",
			Message:   fmt.Sprintf("%s accepted your donation %q.", organizationName(ngo), name),
			Kind:      domain.NotifyDonationAccepted,
			RelatedID: matched.ID,
		},
		domain.Notification{
			UserID:    actor.UserID,
			Title:     "Donation claimed",
			Message:   fmt.Sprintf("You accepted %q. Delivery task %s was created.", name, task.TaskID),
			Kind:      domain.NotifyDonationAccepted,
			RelatedID: task.ID,
		},
	)
	uc.notifier.Record(ctx,
		domain.Event{
			AggregateID: matched.ID,
			Kind:        domain.AggregateDonation,
			Name:        domain.EventDonationAccepted,
			ActorID:     actor.UserID,
			Metadata:    map[string]string{"ngoId": actor.UserID, "taskId": task.ID},
		},
		domain.Event{
			AggregateID: task.ID,
			Kind:        domain.AggregateTask,
			Name:        domain.EventTaskCreated,
			ActorID:     actor.UserID,
			Metadata:    map[string]string{"donationId": matched.ID, "taskCode": task.TaskID},
		},
	)

	offered, err := uc.offer(ctx, task, actor.UserID)
	if err != nil {
		log.Warn("volunteer offer failed", zap.String("task_id", task.ID), zap.Error(err))
		offered = task
	}
	return &AcceptResult{Donation: matched, Task: offered}, nil
}

func (uc *UseCase) buildTask(d *domain.Donation, ngo *domain.User) *domain.Task {
	var delivery domain.Location
	if p, ok := ngo.Profile.(domain.NGOProfile); ok {
		delivery = p.Address
	}

	task := &domain.Task{
		ID:               uuid.NewString(),
		TaskID:           taskCode(uc.now()),
		DonationID:       d.ID,
		NGOID:            ngo.ID,
		DonorID:          d.DonorID,
		PickupLocation:   d.Location,
		DeliveryLocation: delivery,
		Status:           domain.TaskAssigned,
	}
	if d.Location.HasCoordinates() && delivery.HasCoordinates() {
		km := domain.DistanceKm(*d.Location.Coordinates, *delivery.Coordinates)
		task.Distance = roundKm(km)
		task.EstimatedTime = domain.EstimateMinutes(km, uc.cfg.AverageSpeedKmh)
	}
	return task
}

// classifyDonation re-reads a donation after a lost compare-and-set.
func (uc *UseCase) classifyDonation(ctx context.Context, id string) error {
	current, err := uc.donations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return donationConflict(current)
}

// donationConflict reports why a donation cannot be accepted. Every non-pending
// status is a conflict; the message tells a match apart from a closed listing.
func donationConflict(d *domain.Donation) error {
	if d.Status.HasMatch() {
		return domain.ErrDonationTaken
	}
	return domain.ErrDonationClosed
}

// AssignVolunteer re-runs candidate selection for a task that no volunteer has accepted yet.
func (uc *UseCase) AssignVolunteer(ctx context.Context, actor *domain.Actor, taskID string) (*domain.Task, error) {
	if err := domain.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskAssigned {
		return nil, domain.ErrTaskState
	}
	return uc.offer(ctx, task, actor.UserID)
}

// offer proposes the task to the best ranked volunteer that has not rejected it. With
// no candidate left the task stays open so any volunteer may accept it.
func (uc *UseCase) offer(ctx context.Context, task *domain.Task, actorID string) (*domain.Task, error) {
	candidate, err := uc.pickVolunteer(ctx, task)
	if err != nil {
		return task, err
	}
	if candidate == nil {
		logger.FromContext(ctx, uc.logger).Info("task left open",
			zap.String("task_id", task.ID),
			zap.Int("rejections", len(task.RejectedBy)))
		return task, nil
	}
	if task.AssignedTo(candidate.ID) {
		return task, nil
	}

	offered, err := uc.tasks.Offer(ctx, task.ID, &candidate.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			// Claimed in the meantime; nothing left to offer.
			return uc.tasks.GetByID(ctx, task.ID)
		}
		return task, err
	}

	uc.notifier.Notify(ctx, domain.Notification{
		UserID:    candidate.ID,
		Title:     "New delivery task",
		Message:   fmt.Sprintf("Task %s is waiting for you: %s to %s.", offered.TaskID, offered.PickupLocation.Address, offered.DeliveryLocation.Address),
		Kind:      domain.NotifyTaskAssigned,
		RelatedID: offered.ID,
	})
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: offered.ID,
		Kind:        domain.AggregateTask,
		Name:        domain.EventTaskOffered,
		ActorID:     actorID,
		Metadata:    map[string]string{"volunteerId": candidate.ID},
	})
	return offered, nil
}

func taskCode(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("TASK-%s-%s", at.UTC().Format("20060102"), suffix)
}

func roundKm(km float64) float64 {
	return float64(int(km*100+0.5)) / 100
}

func foodName(d *domain.Donation) string {
	if d.FoodDetails.Name != "" {
		return d.FoodDetails.Name
	}
	return d.FoodDetails.Category
}

func organizationName(u *domain.User) string {
	if p, ok := u.Profile.(domain.NGOProfile); ok && p.OrganizationName != "" {
		return p.OrganizationName
	}
	return u.FullName
}
