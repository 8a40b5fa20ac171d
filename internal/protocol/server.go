package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gnsocial/peerchat/internal/types"
)

// Inbound discriminants.
const (
	MsgAuth           = "auth"
	MsgUser           = "user"
	MsgPost           = "post"
	MsgFeed           = "feed"
	MsgRoom           = "room"
	MsgRoomMessage    = "room_message"
	MsgPrivateMessage = "private_message"
	MsgFriend         = "friend"
	MsgError          = "error"
	MsgEvent          = "event"
)

// Event discriminants.
const (
	EventNewPost           = "new_post"
	EventNewRoomMessage    = "new_room_message"
	EventNewPrivateMessage = "new_private_message"
	EventFriendRequest     = "friend_request"
	EventFriendAccepted    = "friend_accepted"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
)

type AuthResult struct {
	Success bool   `json:"success"`
	PeerId  string `json:"peer_id"`
}

// ServerError is an application-level error pushed by the server. It
// carries no reference to the command that provoked it.
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// Event is a server-initiated push. Name selects which of the payload
// fields is populated.
type Event struct {
	Name           string
	Post           *types.Post
	RoomId         string
	RoomMessage    *types.ChatMessage
	PrivateMessage *types.PrivateMessage
	From           string
	Friendship     *types.Friendship
	PeerId         string
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var env struct {
		Name string `json:"event"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	e.Name = env.Name

	switch env.Name {
	case EventNewPost:
		var p struct {
			Post *types.Post `json:"post"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.Post = p.Post
	case EventNewRoomMessage:
		var p struct {
			RoomId  string             `json:"room_id"`
			Message *types.ChatMessage `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.RoomId = p.RoomId
		e.RoomMessage = p.Message
	case EventNewPrivateMessage:
		var p struct {
			Message *types.PrivateMessage `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.PrivateMessage = p.Message
	case EventFriendRequest:
		var p struct {
			From       string            `json:"from"`
			Friendship *types.Friendship `json:"friendship"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.From = p.From
		e.Friendship = p.Friendship
	case EventFriendAccepted, EventUserOnline, EventUserOffline:
		var p struct {
			PeerId string `json:"peer_id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.PeerId = p.PeerId
	}
	// Unknown event names decode with only Name set and are ignored
	// by consumers.
	return nil
}

// ServerMessage is one decoded inbound frame. Type selects which
// fields are populated. For collection-bearing types, a nil slice
// means the frame carried a single item and a non-nil slice (possibly
// empty) means it carried a snapshot.
type ServerMessage struct {
	Type string

	Auth            *AuthResult
	User            *types.User
	Post            *types.Post
	Feed            []types.Post
	Room            *types.ChatRoom
	Rooms           []types.ChatRoom
	RoomMessage     *types.ChatMessage
	RoomMessages    []types.ChatMessage
	PrivateMessage  *types.PrivateMessage
	PrivateMessages []types.PrivateMessage
	Friendship      *types.Friendship
	Friends         []string
	Err             *ServerError
	Event           *Event
}

// Decode parses a single inbound frame. Frames with an unknown type
// decode into a ServerMessage carrying only the tag; the caller is
// expected to skip them.
func Decode(data []byte) (*ServerMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("parse frame: missing type")
	}

	msg := &ServerMessage{Type: env.Type}

	switch env.Type {
	case MsgAuth:
		var p AuthResult
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse auth: %w", err)
		}
		msg.Auth = &p
	case MsgUser:
		var p struct {
			User *types.User `json:"user"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse user: %w", err)
		}
		msg.User = p.User
	case MsgPost:
		var p struct {
			Post *types.Post `json:"post"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse post: %w", err)
		}
		msg.Post = p.Post
	case MsgFeed:
		var p struct {
			Posts []types.Post `json:"posts"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse feed: %w", err)
		}
		if p.Posts == nil {
			p.Posts = []types.Post{}
		}
		msg.Feed = p.Posts
	case MsgRoom:
		var p struct {
			Room  *types.ChatRoom  `json:"room"`
			Rooms []types.ChatRoom `json:"rooms"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse room: %w", err)
		}
		msg.Room = p.Room
		msg.Rooms = p.Rooms
	case MsgRoomMessage:
		var p struct {
			Message  *types.ChatMessage  `json:"message"`
			Messages []types.ChatMessage `json:"messages"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse room_message: %w", err)
		}
		msg.RoomMessage = p.Message
		msg.RoomMessages = p.Messages
	case MsgPrivateMessage:
		var p struct {
			Message  *types.PrivateMessage  `json:"message"`
			Messages []types.PrivateMessage `json:"messages"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse private_message: %w", err)
		}
		msg.PrivateMessage = p.Message
		msg.PrivateMessages = p.Messages
	case MsgFriend:
		var p struct {
			Friendship *types.Friendship `json:"friendship"`
			Friends    []string          `json:"friends"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse friend: %w", err)
		}
		msg.Friendship = p.Friendship
		msg.Friends = p.Friends
	case MsgError:
		var p ServerError
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
		msg.Err = &p
	case MsgEvent:
		var p struct {
			Event *Event `json:"event"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}
		msg.Event = p.Event
	}

	return msg, nil
}
