package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	for _, name := range []string{"store", "http", "realtime"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	m.Register("ignored", nil)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"realtime", "http", "store"}, order)
}

func TestShutdownCollectsHookErrors(t *testing.T) {
	m := New(time.Second, nil)
	ran := false
	m.Register("first", func(context.Context) error { ran = true; return nil })
	m.Register("broken", func(context.Context) error { return errors.New("flush failed") })

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
	assert.True(t, ran, "later hooks still run")
}

func TestFailedComponentCancelsContext(t *testing.T) {
	m := New(time.Second, nil)
	ctx := m.Context(context.Background())

	m.Go("listener", func() error { return errors.New("address in use") })

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled")
	}
	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "address in use")
}

func TestCleanExitKeepsContext(t *testing.T) {
	m := New(time.Second, nil)
	ctx := m.Context(context.Background())
	done := make(chan struct{})
	m.Go("worker", func() error { close(done); return nil })
	<-done

	assert.NoError(t, ctx.Err())
	assert.NoError(t, m.Err())
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Error(t, ctx.Err(), "shutdown releases the context")
}
