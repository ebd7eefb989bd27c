package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusNext(t *testing.T) {
	cases := []struct {
		from TaskStatus
		want TaskStatus
		ok   bool
	}{
		{TaskAssigned, TaskAccepted, true},
		{TaskAccepted, TaskPickedUp, true},
		{TaskPickedUp, TaskInTransit, true},
		{TaskInTransit, TaskDelivered, true},
		{TaskDelivered, "", false},
		{TaskStatus("lost"), "", false},
	}
	for _, tc := range cases {
		next, ok := tc.from.Next()
		assert.Equal(t, tc.ok, ok, tc.from)
		assert.Equal(t, tc.want, next, tc.from)
	}
}

func TestTaskStatusCanAdvanceTo(t *testing.T) {
	assert.True(t, TaskAccepted.CanAdvanceTo(TaskPickedUp))
	assert.False(t, TaskAccepted.CanAdvanceTo(TaskInTransit), "skipping a step")
	assert.False(t, TaskPickedUp.CanAdvanceTo(TaskAccepted), "moving backwards")
	assert.False(t, TaskDelivered.CanAdvanceTo(TaskDelivered))
	assert.False(t, TaskAccepted.CanAdvanceTo(TaskAccepted))
}

func TestTaskStatusDonationStatus(t *testing.T) {
	st, ok := TaskInTransit.DonationStatus()
	require.True(t, ok)
	assert.Equal(t, DonationInTransit, st)

	st, ok = TaskDelivered.DonationStatus()
	require.True(t, ok)
	assert.Equal(t, DonationDelivered, st)

	for _, s := range []TaskStatus{TaskAssigned, TaskAccepted, TaskPickedUp} {
		_, ok := s.DonationStatus()
		assert.False(t, ok, s)
	}
}

func TestTaskAssignment(t *testing.T) {
	vol := "vol-1"
	task := &Task{AssignedVolunteerID: &vol, RejectedBy: []string{"vol-2"}}

	assert.True(t, task.AssignedTo("vol-1"))
	assert.False(t, task.AssignedTo("vol-2"))
	assert.True(t, task.WasRejectedBy("vol-2"))
	assert.False(t, task.WasRejectedBy("vol-1"))

	var missing *Task
	assert.False(t, missing.AssignedTo("vol-1"))
	assert.False(t, missing.WasRejectedBy("vol-1"))
	assert.False(t, missing.IsCompleted())
}
