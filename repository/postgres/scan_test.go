package postgres

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow assigns values positionally; nil leaves the zero value of the destination.
type fakeRow []interface{}

func (r fakeRow) Scan(dest ...interface{}) error {
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func donationRow(location string) fakeRow {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return fakeRow{"d1", "donor-1", "Soup", "prepared", 10.0, "servings", nil, []byte(location), "pending", nil, now, now}
}

func taskRow(pickup, delivery string) fakeRow {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return fakeRow{"t1", "TASK-20240501-ABCDEF", "d1", "ngo-1", "donor-1", []byte(pickup), []byte(delivery),
		"assigned", nil, []string(nil), 2.5, 5, nil, now, now}
}

func TestScanDonationDecodesLocation(t *testing.T) {
	d, err := scanDonation(donationRow(`{"address":"1 Main St","coordinates":[52.52,13.405]}`))
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", d.Location.Address)
	require.NotNil(t, d.Location.Coordinates)
	assert.Equal(t, 52.52, d.Location.Coordinates.Lat())

	_, err = scanDonation(donationRow(`{"address":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "donations.location")
}

func TestScanTaskRejectsCorruptLocations(t *testing.T) {
	task, err := scanTask(taskRow(`{"address":"pickup"}`, `{"address":"shelter"}`))
	require.NoError(t, err)
	assert.Equal(t, "pickup", task.PickupLocation.Address)
	assert.Equal(t, "shelter", task.DeliveryLocation.Address)

	_, err = scanTask(taskRow(`not json`, `{}`))
	assert.ErrorContains(t, err, "tasks.pickup_location")

	_, err = scanTask(taskRow(`{}`, `[1,2`))
	assert.ErrorContains(t, err, "tasks.delivery_location")
}

func TestDecodeColumnSkipsEmpty(t *testing.T) {
	var meta map[string]string
	require.NoError(t, decodeColumn("metadata", nil, &meta))
	assert.Nil(t, meta)
	assert.Error(t, decodeColumn("metadata", []byte(`"text"`), &meta))
}
