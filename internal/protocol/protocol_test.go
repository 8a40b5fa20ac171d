package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	t.Run("auth", func(t *testing.T) {
		frame, err := EncodeCommand(Auth{PeerId: "P1"})
		require.NoError(t, err, "expected no error encoding auth")
		assert.JSONEq(t, `{"type":"auth","peer_id":"P1"}`, string(frame))
	})

	t.Run("auth with token", func(t *testing.T) {
		frame, err := EncodeCommand(Auth{PeerId: "P1", Token: "tok"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"auth","peer_id":"P1","token":"tok"}`, string(frame))
	})

	t.Run("empty-body command", func(t *testing.T) {
		frame, err := EncodeCommand(GetRooms{})
		require.NoError(t, err)
		assert.Equal(t, `{"type":"get_rooms"}`, string(frame))
	})

	t.Run("create_post carries media hashes even when empty", func(t *testing.T) {
		frame, err := EncodeCommand(CreatePost{
			Content:     "hello",
			MediaHashes: []string{},
			Visibility:  "Public",
		})
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"type":"create_post","content":"hello","media_hashes":[],"visibility":"Public"}`,
			string(frame))
	})

	t.Run("create_room keeps false flags", func(t *testing.T) {
		frame, err := EncodeCommand(CreateRoom{Name: "general", IsGroup: false, IsPublic: false})
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"type":"create_room","name":"general","is_group":false,"is_public":false}`,
			string(frame))
	})

	t.Run("frame is a single json object", func(t *testing.T) {
		frame, err := EncodeCommand(SendRoomMessage{
			RoomId:      "r1",
			Content:     "hi",
			MediaHashes: []string{},
		})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded), "expected frame to be valid json")
		assert.Equal(t, "send_room_message", decoded["type"])
		assert.Equal(t, "r1", decoded["room_id"])
	})
}

func TestDecode(t *testing.T) {
	t.Run("auth result", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"auth","success":true,"peer_id":"P1"}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Auth, "expected auth payload")
		assert.True(t, msg.Auth.Success)
		assert.Equal(t, "P1", msg.Auth.PeerId)
	})

	t.Run("single post", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"post","post":{"id":"p1","author_id":"P1","content":"hi","visibility":"Public"}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Post)
		assert.Equal(t, "p1", msg.Post.Id)
		assert.Nil(t, msg.Feed, "expected no feed snapshot on a single post")
	})

	t.Run("empty feed snapshot is non-nil", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"feed","posts":[]}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Feed, "an empty snapshot must be distinguishable from no snapshot")
		assert.Len(t, msg.Feed, 0)
	})

	t.Run("room set snapshot", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"room","rooms":[{"id":"r1","name":"a","owner_id":"P1","is_group":true,"is_public":true}]}`))
		require.NoError(t, err)
		assert.Nil(t, msg.Room)
		require.Len(t, msg.Rooms, 1)
		assert.Equal(t, "r1", msg.Rooms[0].Id)
	})

	t.Run("single room upsert", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"room","room":{"id":"r2","name":"b","owner_id":"P1","is_group":false,"is_public":false}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Room)
		assert.Equal(t, "r2", msg.Room.Id)
		assert.Nil(t, msg.Rooms)
	})

	t.Run("room message log", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"room_message","messages":[{"id":"m1","room_id":"r1","sender_id":"P2","content":"yo"}]}`))
		require.NoError(t, err)
		assert.Nil(t, msg.RoomMessage)
		require.Len(t, msg.RoomMessages, 1)
		assert.Equal(t, "m1", msg.RoomMessages[0].Id)
	})

	t.Run("private message push", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"private_message","message":{"id":"pm1","sender_id":"P2","recipient_id":"P1","content":"psst"}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.PrivateMessage)
		assert.Equal(t, "pm1", msg.PrivateMessage.Id)
	})

	t.Run("friend set snapshot", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"friend","friends":["P2","P3"]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"P2", "P3"}, msg.Friends)
	})

	t.Run("structured error", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"error","code":404,"message":"user not found"}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Err)
		assert.Equal(t, 404, msg.Err.Code)
		assert.EqualError(t, msg.Err, "server error 404: user not found")
	})

	t.Run("unknown type is tolerated", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"totally_new","stuff":1}`))
		require.NoError(t, err, "unknown tags must decode so consumers can skip them")
		assert.Equal(t, "totally_new", msg.Type)
		assert.Nil(t, msg.Auth)
	})

	t.Run("malformed frame", func(t *testing.T) {
		_, err := Decode([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Decode([]byte(`{"success":true}`))
		assert.Error(t, err)
	})
}

func TestDecodeEvents(t *testing.T) {
	t.Run("new_post", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"event","event":{"event":"new_post","post":{"id":"p9","author_id":"P2","content":"x","visibility":"Public"}}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Event)
		assert.Equal(t, EventNewPost, msg.Event.Name)
		require.NotNil(t, msg.Event.Post)
		assert.Equal(t, "p9", msg.Event.Post.Id)
	})

	t.Run("new_room_message", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"event","event":{"event":"new_room_message","room_id":"r1","message":{"id":"m2","room_id":"r1","sender_id":"P3","content":"hey"}}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Event)
		assert.Equal(t, "r1", msg.Event.RoomId)
		require.NotNil(t, msg.Event.RoomMessage)
		assert.Equal(t, "m2", msg.Event.RoomMessage.Id)
	})

	t.Run("new_private_message", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"event","event":{"event":"new_private_message","message":{"id":"pm2","sender_id":"P2","recipient_id":"P1","content":"hi"}}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Event.PrivateMessage)
		assert.Equal(t, "pm2", msg.Event.PrivateMessage.Id)
	})

	t.Run("friend_request", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"event","event":{"event":"friend_request","from":"P7","friendship":{"requester_id":"P7","addressee_id":"P1","status":"Pending"}}}`))
		require.NoError(t, err)
		assert.Equal(t, "P7", msg.Event.From)
		require.NotNil(t, msg.Event.Friendship)
		assert.Equal(t, "Pending", string(msg.Event.Friendship.Status))
	})

	t.Run("friend_accepted", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"event","event":{"event":"friend_accepted","peer_id":"P8"}}`))
		require.NoError(t, err)
		assert.Equal(t, EventFriendAccepted, msg.Event.Name)
		assert.Equal(t, "P8", msg.Event.PeerId)
	})

	t.Run("presence", func(t *testing.T) {
		for _, name := range []string{EventUserOnline, EventUserOffline} {
			msg, err := Decode([]byte(`{"type":"event","event":{"event":"` + name + `","peer_id":"P9"}}`))
			require.NoError(t, err)
			assert.Equal(t, name, msg.Event.Name)
			assert.Equal(t, "P9", msg.Event.PeerId)
		}
	})

	t.Run("unknown event name is tolerated", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"event","event":{"event":"mystery"}}`))
		require.NoError(t, err)
		assert.Equal(t, "mystery", msg.Event.Name)
	})
}
