package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/foodbridge/domain"
)

func decode(t *testing.T, raw []byte) Message {
	t.Helper()
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHubPushReachesEveryConnectionOfUser(t *testing.T) {
	hub := NewHub(nil)
	alice := &domain.Actor{UserID: "alice"}
	phone := NewClient(alice, nil, 4)
	laptop := NewClient(alice, nil, 4)
	bob := NewClient(&domain.Actor{UserID: "bob"}, nil, 4)

	for _, c := range []*Client{phone, laptop, bob} {
		hub.Register(c)
		require.True(t, hub.Join(c, c.UserID()))
	}

	assert.Equal(t, 2, hub.Push("alice", "new_notification", map[string]string{"title": "hi"}))
	assert.Equal(t, 0, hub.Push("carol", "new_notification", nil))

	for _, c := range []*Client{phone, laptop} {
		select {
		case raw := <-c.Messages():
			msg := decode(t, raw)
			assert.Equal(t, "new_notification", msg.Event)
		default:
			t.Fatal("expected a queued message")
		}
	}
	assert.Len(t, bob.Messages(), 0)
	assert.True(t, hub.Online("alice"))
	assert.Equal(t, 2, hub.Connections("alice"))
}

func TestHubDropsSlowConnection(t *testing.T) {
	hub := NewHub(nil)
	slow := NewClient(&domain.Actor{UserID: "u1"}, nil, 1)
	hub.Register(slow)
	hub.Join(slow, "u1")

	assert.Equal(t, 1, hub.Push("u1", "e", 1))
	assert.Equal(t, 0, hub.Push("u1", "e", 2), "full queue")
	assert.False(t, hub.Online("u1"))

	_, ok := <-slow.Messages()
	assert.True(t, ok, "the queued message is still readable")
	_, ok = <-slow.Messages()
	assert.False(t, ok, "queue closed after removal")
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient(&domain.Actor{UserID: "u1"}, nil, 0)
	hub.Register(c)
	hub.Join(c, "u1")

	hub.Remove(c)
	assert.NotPanics(t, func() { hub.Remove(c) })
	assert.False(t, hub.Join(c, "u1"), "removed clients cannot rejoin")
	assert.Zero(t, hub.Push("u1", "e", nil))
}

func TestHubLeaveAndClose(t *testing.T) {
	hub := NewHub(nil)
	a := NewClient(&domain.Actor{UserID: "u1"}, nil, 0)
	b := NewClient(&domain.Actor{UserID: "u1"}, nil, 0)
	for _, c := range []*Client{a, b} {
		hub.Register(c)
		hub.Join(c, "u1")
	}

	hub.Leave(a, "u1")
	assert.Equal(t, 1, hub.Connections("u1"))

	hub.Close()
	assert.False(t, hub.Online("u1"))
	_, ok := <-a.Messages()
	assert.False(t, ok)
	_, ok = <-b.Messages()
	assert.False(t, ok)
}

func TestHubDisconnectSessionAndUser(t *testing.T) {
	hub := NewHub(nil)
	phone := NewClient(&domain.Actor{UserID: "u1", SessionID: "s-phone"}, nil, 4)
	laptop := NewClient(&domain.Actor{UserID: "u1", SessionID: "s-laptop"}, nil, 4)
	other := NewClient(&domain.Actor{UserID: "u2", SessionID: "s-other"}, nil, 4)
	for _, c := range []*Client{phone, laptop, other} {
		hub.Register(c)
		hub.Join(c, c.UserID())
	}

	assert.Equal(t, 1, hub.DisconnectSession("s-phone"))
	assert.Equal(t, 1, hub.Connections("u1"))
	_, ok := <-phone.Messages()
	assert.False(t, ok, "revoked connection is closed")
	assert.Zero(t, hub.DisconnectSession(""))

	assert.Equal(t, 1, hub.DisconnectUser("u1"))
	assert.False(t, hub.Online("u1"))
	assert.True(t, hub.Online("u2"))
	assert.Zero(t, hub.DisconnectUser("u1"))
}
