// Package social is the intent layer: it translates user-facing
// actions into protocol commands and forwards them through the
// connection manager. Commands are fire-and-forget; with no
// correlation ids on the wire there is nothing to await.
package social

import (
	"log"

	"github.com/gnsocial/peerchat/internal/protocol"
	"github.com/gnsocial/peerchat/internal/session"
	"github.com/gnsocial/peerchat/internal/store"
	"github.com/gnsocial/peerchat/internal/types"
)

type Client struct {
	transport  session.Transport
	session    *session.Session
	store      *store.Store
	log        *log.Logger
	unsubStore func()
}

// New builds the client core on top of a transport. The session is
// subscribed to the transport before the store so that hydration
// commands go out before any snapshot or push is reconciled.
func New(t session.Transport, ident session.IdentityStore, st *store.Store, token string, logger *log.Logger) (*Client, error) {
	sess, err := session.New(t, ident, st, token, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		transport: t,
		session:   sess,
		store:     st,
		log:       logger,
	}
	c.unsubStore = t.Subscribe(st.Apply)
	return c, nil
}

func (c *Client) Session() *session.Session { return c.session }
func (c *Client) Store() *store.Store       { return c.store }

// Teardown detaches the client from the transport. The transport
// itself is owned by the caller.
func (c *Client) Teardown() {
	c.unsubStore()
	c.session.Teardown()
}

// Login persists the identity and arms authentication. The stored
// identity survives restarts.
func (c *Client) Login(peerId string) error {
	return c.session.Login(peerId)
}

func (c *Client) Logout() error {
	return c.session.Logout()
}

func (c *Client) CreatePost(content string, visibility types.PostVisibility) bool {
	if visibility == "" {
		visibility = types.VisibilityPublic
	}
	return c.transport.Send(protocol.CreatePost{
		Content:     content,
		MediaHashes: []string{},
		Visibility:  string(visibility),
	})
}

func (c *Client) LikePost(postId string) bool {
	return c.transport.Send(protocol.LikePost{PostId: postId})
}

func (c *Client) UnlikePost(postId string) bool {
	return c.transport.Send(protocol.LikePost{PostId: postId, Unlike: true})
}

func (c *Client) CreateRoom(name string, isGroup, isPublic bool) bool {
	return c.transport.Send(protocol.CreateRoom{
		Name:     name,
		IsGroup:  isGroup,
		IsPublic: isPublic,
	})
}

func (c *Client) JoinRoom(roomId string) bool {
	return c.transport.Send(protocol.JoinRoom{RoomId: roomId})
}

func (c *Client) LeaveRoom(roomId string) bool {
	return c.transport.Send(protocol.LeaveRoom{RoomId: roomId})
}

// SelectRoom makes roomId the active room and fetches its message
// log. Only the explicit fetch populates the log; pushes that arrived
// while the room was inactive are gone.
func (c *Client) SelectRoom(roomId string) bool {
	c.store.SetCurrentRoom(roomId)
	if roomId == "" {
		return true
	}
	return c.transport.Send(protocol.GetRoomMessages{RoomId: roomId})
}

func (c *Client) SendRoomMessage(roomId, content string) bool {
	return c.transport.Send(protocol.SendRoomMessage{
		RoomId:      roomId,
		Content:     content,
		MediaHashes: []string{},
	})
}

func (c *Client) SendPrivateMessage(recipientId, content string) bool {
	return c.transport.Send(protocol.SendPrivateMessage{
		RecipientId: recipientId,
		Content:     content,
		MediaHashes: []string{},
	})
}

// MessageUser routes a message to peerId: through an existing
// one-on-one room when the room set has one, otherwise as a direct
// private message.
func (c *Client) MessageUser(peerId, content string) bool {
	for _, r := range c.store.Rooms() {
		if !r.IsGroup && r.HasMember(peerId) {
			c.SelectRoom(r.Id)
			return c.SendRoomMessage(r.Id, content)
		}
	}
	return c.SendPrivateMessage(peerId, content)
}

func (c *Client) RequestFriend(peerId string) bool {
	return c.transport.Send(protocol.RequestFriend{PeerId: peerId})
}

func (c *Client) AcceptFriend(peerId string) bool {
	return c.transport.Send(protocol.AcceptFriend{PeerId: peerId})
}

func (c *Client) GetFeed() bool {
	id := c.session.Identity()
	if id == "" {
		return false
	}
	return c.transport.Send(protocol.GetFeed{PeerId: id})
}

func (c *Client) GetRooms() bool {
	return c.transport.Send(protocol.GetRooms{})
}

// GetRoomMessages activates roomId and fetches its message log.
func (c *Client) GetRoomMessages(roomId string) bool {
	return c.SelectRoom(roomId)
}

func (c *Client) GetFriends() bool {
	return c.transport.Send(protocol.GetFriends{})
}

func (c *Client) GetPrivateMessages() bool {
	return c.transport.Send(protocol.GetPrivateMessages{})
}

func (c *Client) GetUser(peerId string) bool {
	return c.transport.Send(protocol.GetUser{PeerId: peerId})
}

func (c *Client) SearchUsers(query string) bool {
	return c.transport.Send(protocol.SearchUsers{Query: query})
}

func (c *Client) UpdateProfile(displayName, bio string) bool {
	return c.transport.Send(protocol.UpdateUser{DisplayName: displayName, Bio: bio})
}

// ShowProfile selects peerId as the viewed profile and asks the
// server for the current record; the placeholder refreshes when the
// record arrives.
func (c *Client) ShowProfile(peerId string) bool {
	c.store.ShowProfile(peerId)
	return c.transport.Send(protocol.GetUser{PeerId: peerId})
}

func (c *Client) CloseProfile() {
	c.store.CloseProfile()
}
