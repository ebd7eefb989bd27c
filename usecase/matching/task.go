package matching

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/repository"
)

// AcceptTask lets a volunteer take a task that is open or offered to them. Concurrent
// callers race on one compare-and-set; losers receive ErrTaskTaken. Unknown ids read
// the same as tasks offered to someone else.
func (uc *UseCase) AcceptTask(ctx context.Context, actor *domain.Actor, taskID string) (*domain.Task, error) {
	if err := domain.AuthorizeVerified(actor, domain.RoleVolunteer); err != nil {
		return nil, err
	}

	task, err := uc.tasks.Claim(ctx, taskID, actor.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			return nil, domain.ErrTaskForbidden
		case errors.Is(err, repository.ErrStale):
			return nil, uc.classifyClaim(ctx, taskID, actor.UserID)
		}
		return nil, err
	}

	logger.FromContext(ctx, uc.logger).Info("task accepted",
		zap.String("task_id", task.ID),
		zap.String("volunteer_id", actor.UserID))

	uc.notifier.Notify(ctx,
		domain.Notification{
			UserID:    task.DonorID,
			Title:     "Volunteer on the way",
			Message:   fmt.Sprintf("A volunteer accepted task %s for your donation.", task.TaskID),
			Kind:      domain.NotifyTaskAccepted,
			RelatedID: task.DonationID,
		},
		domain.Notification{
			UserID:    task.NGOID,
			Title:     "Volunteer assigned",
			Message:   fmt.Sprintf("Task %s was accepted by a volunteer.", task.TaskID),
			Kind:      domain.NotifyTaskAccepted,
			RelatedID: task.ID,
		},
		domain.Notification{
			UserID:    actor.UserID,
			Title:     "Task accepted",
			Message:   fmt.Sprintf("You accepted task %s. Pick up at %s.", task.TaskID, task.PickupLocation.Address),
			Kind:      domain.NotifyTaskAccepted,
			RelatedID: task.ID,
		},
	)
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: task.ID,
		Kind:        domain.AggregateTask,
		Name:        domain.EventTaskAccepted,
		ActorID:     actor.UserID,
	})
	return task, nil
}

func (uc *UseCase) classifyClaim(ctx context.Context, taskID, volunteerID string) error {
	current, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrTaskForbidden
		}
		return err
	}
	switch {
	case current.Status == domain.TaskAssigned:
		// Offered to somebody else and not yet accepted.
		return domain.ErrTaskForbidden
	case current.AssignedTo(volunteerID):
		return domain.ErrTaskState
	default:
		return domain.ErrTaskTaken
	}
}

// RejectTask returns an offered task to the pool and offers it to the next candidate.
// Unknown ids and tasks offered to someone else produce the same authorization error.
func (uc *UseCase) RejectTask(ctx context.Context, actor *domain.Actor, taskID string) (*domain.Task, error) {
	if err := domain.AuthorizeVerified(actor, domain.RoleVolunteer); err != nil {
		return nil, err
	}

	released, err := uc.tasks.Release(ctx, taskID, actor.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			return nil, domain.ErrTaskForbidden
		case errors.Is(err, repository.ErrStale):
			return nil, uc.classifyOwned(ctx, taskID, actor.UserID)
		}
		return nil, err
	}

	log := logger.FromContext(ctx, uc.logger)
	log.Info("task rejected",
		zap.String("task_id", released.ID),
		zap.String("volunteer_id", actor.UserID))

	uc.notifier.Notify(ctx, domain.Notification{
		UserID:    released.NGOID,
		Title:     "Task declined",
		Message:   fmt.Sprintf("A volunteer declined task %s. It is being offered again.", released.TaskID),
		Kind:      domain.NotifyTaskRejected,
		RelatedID: released.ID,
	})
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: released.ID,
		Kind:        domain.AggregateTask,
		Name:        domain.EventTaskRejected,
		ActorID:     actor.UserID,
	})

	reoffered, err := uc.offer(ctx, released, actor.UserID)
	if err != nil {
		log.Warn("volunteer re-offer failed", zap.String("task_id", released.ID), zap.Error(err))
		return released, nil
	}
	return reoffered, nil
}

// classifyOwned explains a lost write on a task the caller expected to hold.
func (uc *UseCase) classifyOwned(ctx context.Context, taskID, volunteerID string) error {
	current, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrTaskForbidden
		}
		return err
	}
	if !current.AssignedTo(volunteerID) {
		return domain.ErrTaskForbidden
	}
	return domain.ErrTaskState
}

// AdvanceTask moves the caller's task exactly one step forward. Reaching in_transit or
// delivered updates the donation in the same write; delivered also completes the task
// and credits the volunteer.
func (uc *UseCase) AdvanceTask(ctx context.Context, actor *domain.Actor, taskID string, next domain.TaskStatus) (*domain.Task, error) {
	if err := domain.AuthorizeVerified(actor, domain.RoleVolunteer); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, domain.Validation("unknown task status %q", next)
	}
	if next == domain.TaskAccepted {
		return uc.AcceptTask(ctx, actor, taskID)
	}

	current, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, domain.ErrTaskForbidden
		}
		return nil, err
	}
	if !current.AssignedTo(actor.UserID) {
		return nil, domain.ErrTaskForbidden
	}
	if !current.Status.CanAdvanceTo(next) {
		return nil, domain.ErrTaskState
	}

	step := repository.TaskAdvance{
		TaskID:      taskID,
		VolunteerID: actor.UserID,
		From:        current.Status,
		To:          next,
		Complete:    next == domain.TaskDelivered,
		At:          uc.now(),
	}
	if ds, ok := next.DonationStatus(); ok {
		step.DonationStatus = ds
	}

	task, err := uc.tasks.Advance(ctx, step)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, uc.classifyOwned(ctx, taskID, actor.UserID)
		}
		return nil, err
	}

	logger.FromContext(ctx, uc.logger).Info("task advanced",
		zap.String("task_id", task.ID),
		zap.String("from", string(step.From)),
		zap.String("to", string(step.To)))

	uc.notifier.Notify(ctx, progressNotes(task, actor.UserID)...)
	uc.notifier.Record(ctx, progressEvents(task, step, actor.UserID)...)
	return task, nil
}

func progressNotes(task *domain.Task, volunteerID string) []domain.Notification {
	if task.Status == domain.TaskDelivered {
		msg := fmt.Sprintf("Task %s was delivered to %s.", task.TaskID, task.DeliveryLocation.Address)
		return []domain.Notification{
			{UserID: task.DonorID, Title: "Donation delivered", Message: msg, Kind: domain.NotifyDonationDelivered, RelatedID: task.DonationID},
			{UserID: task.NGOID, Title: "Donation delivered", Message: msg, Kind: domain.NotifyDonationDelivered, RelatedID: task.ID},
			{UserID: volunteerID, Title: "Delivery completed", Message: fmt.Sprintf("Thanks! Task %s is complete.", task.TaskID), Kind: domain.NotifyDonationDelivered, RelatedID: task.ID},
		}
	}

	var title string
	switch task.Status {
	case domain.TaskPickedUp:
		title = "Donation picked up"
	case domain.TaskInTransit:
		title = "Donation in transit"
	default:
		title = "Task updated"
	}
	msg := fmt.Sprintf("Task %s is now %s.", task.TaskID, task.Status)
	return []domain.Notification{
		{UserID: task.DonorID, Title: title, Message: msg, Kind: domain.NotifyTaskProgress, RelatedID: task.DonationID},
		{UserID: task.NGOID, Title: title, Message: msg, Kind: domain.NotifyTaskProgress, RelatedID: task.ID},
	}
}

func progressEvents(task *domain.Task, step repository.TaskAdvance, actorID string) []domain.Event {
	events := []domain.Event{{
		AggregateID: task.ID,
		Kind:        domain.AggregateTask,
		Name:        string(step.To),
		ActorID:     actorID,
		Metadata:    map[string]string{"from": string(step.From)},
	}}
	if step.DonationStatus != "" {
		events = append(events, domain.Event{
			AggregateID: task.DonationID,
			Kind:        domain.AggregateDonation,
			Name:        string(step.DonationStatus),
			ActorID:     actorID,
			Metadata:    map[string]string{"taskId": task.ID},
		})
	}
	return events
}

// ListTasks returns the tasks the caller's role may see. Volunteers see tasks offered
// to or held by them plus open tasks anyone may accept.
func (uc *UseCase) ListTasks(ctx context.Context, actor *domain.Actor, statuses []domain.TaskStatus, limit, offset int) ([]domain.Task, error) {
	if err := domain.Authorize(actor, domain.RoleVolunteer, domain.RoleNGO, domain.RoleDonor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	filter := repository.TaskFilter{Statuses: statuses, Limit: limit, Offset: offset}
	switch actor.Role {
	case domain.RoleVolunteer:
		filter.VolunteerID = actor.UserID
		filter.IncludeOpen = true
	case domain.RoleNGO:
		filter.NGOID = actor.UserID
	case domain.RoleDonor:
		filter.DonorID = actor.UserID
	}
	return uc.tasks.List(ctx, filter)
}

// GetTask returns a task visible to the caller, NotFound otherwise.
func (uc *UseCase) GetTask(ctx context.Context, actor *domain.Actor, taskID string) (*domain.Task, error) {
	if err := domain.Authorize(actor, domain.RoleVolunteer, domain.RoleNGO, domain.RoleDonor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !taskVisible(task, actor) {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func taskVisible(t *domain.Task, actor *domain.Actor) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleNGO:
		return t.NGOID == actor.UserID
	case domain.RoleDonor:
		return t.DonorID == actor.UserID
	case domain.RoleVolunteer:
		return t.AssignedTo(actor.UserID) || (t.Status == domain.TaskAssigned && t.AssignedVolunteerID == nil)
	}
	return false
}
