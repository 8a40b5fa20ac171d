// Package protocol defines the wire vocabulary spoken over the server
// websocket: the closed set of outbound commands and the closed set of
// inbound responses and server-initiated events. Every frame is one
// UTF-8 JSON object with a discriminant field; there are no correlation
// ids, so inbound frames are matched to intents by shape only.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Outbound discriminants.
const (
	CmdAuth               = "auth"
	CmdCreateUser         = "create_user"
	CmdUpdateUser         = "update_user"
	CmdCreatePost         = "create_post"
	CmdGetFeed            = "get_feed"
	CmdGetPost            = "get_post"
	CmdLikePost           = "like_post"
	CmdCreateRoom         = "create_room"
	CmdGetRooms           = "get_rooms"
	CmdJoinRoom           = "join_room"
	CmdLeaveRoom          = "leave_room"
	CmdSendRoomMessage    = "send_room_message"
	CmdGetRoomMessages    = "get_room_messages"
	CmdRequestFriend      = "request_friend"
	CmdAcceptFriend       = "accept_friend"
	CmdGetFriends         = "get_friends"
	CmdSendPrivateMessage = "send_private_message"
	CmdGetPrivateMessages = "get_private_messages"
	CmdGetUser            = "get_user"
	CmdSearchUsers        = "search_users"
)

// Command is one outbound protocol message. Each variant reports its
// discriminant via Type; EncodeCommand splices it into the frame.
type Command interface {
	Type() string
}

type Auth struct {
	PeerId string `json:"peer_id"`
	Token  string `json:"token,omitempty"`
}

func (Auth) Type() string { return CmdAuth }

type CreateUser struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

func (CreateUser) Type() string { return CmdCreateUser }

type UpdateUser struct {
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

func (UpdateUser) Type() string { return CmdUpdateUser }

type CreatePost struct {
	Content     string   `json:"content"`
	MediaHashes []string `json:"media_hashes"`
	ReplyTo     string   `json:"reply_to,omitempty"`
	RepostOf    string   `json:"repost_of,omitempty"`
	Visibility  string   `json:"visibility"`
}

func (CreatePost) Type() string { return CmdCreatePost }

type GetFeed struct {
	PeerId string `json:"peer_id"`
	Limit  int    `json:"limit,omitempty"`
	Before string `json:"before,omitempty"`
}

func (GetFeed) Type() string { return CmdGetFeed }

type GetPost struct {
	PostId string `json:"post_id"`
}

func (GetPost) Type() string { return CmdGetPost }

type LikePost struct {
	PostId string `json:"post_id"`
	Unlike bool   `json:"unlike,omitempty"`
}

func (LikePost) Type() string { return CmdLikePost }

type CreateRoom struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsGroup     bool   `json:"is_group"`
	IsPublic    bool   `json:"is_public"`
}

func (CreateRoom) Type() string { return CmdCreateRoom }

type GetRooms struct{}

func (GetRooms) Type() string { return CmdGetRooms }

type JoinRoom struct {
	RoomId string `json:"room_id"`
}

func (JoinRoom) Type() string { return CmdJoinRoom }

type LeaveRoom struct {
	RoomId string `json:"room_id"`
}

func (LeaveRoom) Type() string { return CmdLeaveRoom }

type SendRoomMessage struct {
	RoomId      string   `json:"room_id"`
	Content     string   `json:"content"`
	MediaHashes []string `json:"media_hashes"`
	ReplyTo     string   `json:"reply_to,omitempty"`
}

func (SendRoomMessage) Type() string { return CmdSendRoomMessage }

type GetRoomMessages struct {
	RoomId string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
	Before string `json:"before,omitempty"`
}

func (GetRoomMessages) Type() string { return CmdGetRoomMessages }

type RequestFriend struct {
	PeerId string `json:"peer_id"`
}

func (RequestFriend) Type() string { return CmdRequestFriend }

type AcceptFriend struct {
	PeerId string `json:"peer_id"`
}

func (AcceptFriend) Type() string { return CmdAcceptFriend }

type GetFriends struct{}

func (GetFriends) Type() string { return CmdGetFriends }

type SendPrivateMessage struct {
	RecipientId string   `json:"recipient_id"`
	Content     string   `json:"content"`
	MediaHashes []string `json:"media_hashes"`
}

func (SendPrivateMessage) Type() string { return CmdSendPrivateMessage }

type GetPrivateMessages struct {
	PeerId string `json:"peer_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (GetPrivateMessages) Type() string { return CmdGetPrivateMessages }

type GetUser struct {
	PeerId string `json:"peer_id"`
}

func (GetUser) Type() string { return CmdGetUser }

type SearchUsers struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (SearchUsers) Type() string { return CmdSearchUsers }

// EncodeCommand serializes cmd as a single frame, splicing the type
// discriminant into the variant's own fields.
func EncodeCommand(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", cmd.Type(), err)
	}

	tag := []byte(fmt.Sprintf(`{"type":%q`, cmd.Type()))
	if bytes.Equal(body, []byte("{}")) {
		return append(tag, '}'), nil
	}

	frame := append(tag, ',')
	frame = append(frame, body[1:]...)
	return frame, nil
}
