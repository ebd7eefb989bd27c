package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/usecase"
	"github.com/fastygo/foodbridge/usecase/notification"
)

// Event names sent by the server in reply to commands.
const (
	EventError        = "error"
	EventPong         = "pong"
	EventRoomJoined   = "room_joined"
	EventRoomLeft     = "room_left"
	EventUnreadCount  = "unread_count"
	EventNotification = "notification_read"
)

// Client command names.
const (
	CommandJoinRoom    = "join_room"
	CommandLeaveRoom   = "leave_room"
	CommandPing        = "ping"
	CommandUnreadCount = "unread_count"
	CommandMarkRead    = "mark_read"
)

var errNoConnection = domain.NewError(domain.ErrCodeInvalid, "command requires a websocket connection")

// RegisterCommands installs the websocket commands on d. notifications may be nil,
// in which case only room management and ping are available.
func RegisterCommands(d *usecase.Dispatcher, hub *Hub, notifications *notification.UseCase) {
	d.RegisterPublic(CommandPing, func(context.Context, *domain.Actor, json.RawMessage) (interface{}, error) {
		return Message{Event: EventPong}, nil
	})

	d.Register(CommandJoinRoom, func(ctx context.Context, actor *domain.Actor, payload json.RawMessage) (interface{}, error) {
		c := ClientFrom(ctx)
		if c == nil {
			return nil, errNoConnection
		}
		room, err := roomID(payload, actor)
		if err != nil {
			return nil, err
		}
		if room != actor.UserID {
			return nil, domain.ErrForbidden
		}
		if !hub.Join(c, room) {
			return nil, errNoConnection
		}
		return Message{Event: EventRoomJoined, Data: room}, nil
	})

	d.Register(CommandLeaveRoom, func(ctx context.Context, actor *domain.Actor, payload json.RawMessage) (interface{}, error) {
		c := ClientFrom(ctx)
		if c == nil {
			return nil, errNoConnection
		}
		room, err := roomID(payload, actor)
		if err != nil {
			return nil, err
		}
		hub.Leave(c, room)
		return Message{Event: EventRoomLeft, Data: room}, nil
	})

	if notifications == nil {
		return
	}

	d.Register(CommandUnreadCount, func(ctx context.Context, actor *domain.Actor, _ json.RawMessage) (interface{}, error) {
		count, err := notifications.UnreadCount(ctx, actor)
		if err != nil {
			return nil, err
		}
		return Message{Event: EventUnreadCount, Data: count}, nil
	})

	d.Register(CommandMarkRead, func(ctx context.Context, actor *domain.Actor, payload json.RawMessage) (interface{}, error) {
		var id string
		if err := json.Unmarshal(payload, &id); err != nil || strings.TrimSpace(id) == "" {
			return nil, domain.Validation("mark_read expects a notification id")
		}
		n, err := notifications.MarkRead(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		return Message{Event: EventNotification, Data: n}, nil
	})
}

// roomID reads the room from a JSON string payload, defaulting to the caller's own room.
func roomID(payload json.RawMessage, actor *domain.Actor) (string, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return actor.UserID, nil
	}
	var room string
	if err := json.Unmarshal(payload, &room); err != nil {
		return "", domain.Validation("room must be a user id string")
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return actor.UserID, nil
	}
	return room, nil
}
