// Package store holds the authoritative in-memory collections the
// presentation layer renders: feed, rooms, message logs, friends,
// users. Apply reconciles one decoded inbound message at a time;
// readers always get copies, never live references.
package store

import (
	"log"
	"sort"
	"sync"

	"github.com/gnsocial/peerchat/internal/protocol"
	"github.com/gnsocial/peerchat/internal/stats"
	"github.com/gnsocial/peerchat/internal/types"
)

// errLogMax bounds the retained server error stream.
const errLogMax = 32

type Store struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu              sync.RWMutex
	selfId          string
	users           map[string]types.User
	posts           []types.Post
	rooms           []types.ChatRoom
	currentRoomId   string
	roomMessages    []types.ChatMessage
	privateMessages []types.PrivateMessage
	friends         map[string]struct{}
	online          map[string]struct{}
	profile         *types.User
	errs            []protocol.ServerError

	subs    map[int]func()
	nextSub int
}

func New(logger *log.Logger, sp stats.StatsProvider) *Store {
	return &Store{
		log:     logger,
		stats:   sp,
		users:   make(map[string]types.User),
		friends: make(map[string]struct{}),
		online:  make(map[string]struct{}),
		subs:    make(map[int]func()),
	}
}

// Subscribe registers fn to run after every state change. The
// returned function unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Apply reconciles one decoded inbound message into the collections.
// Each call is atomic: no reader observes a partially applied message.
// Unknown message and event tags are ignored.
func (s *Store) Apply(msg *protocol.ServerMessage) {
	s.mu.Lock()
	changed := s.apply(msg)
	s.mu.Unlock()

	if changed {
		s.stats.Incr(stats.MetricMessagesApplied)
		s.notify()
	}
}

func (s *Store) apply(msg *protocol.ServerMessage) bool {
	switch msg.Type {
	case protocol.MsgUser:
		if msg.User == nil {
			return false
		}
		s.upsertUser(*msg.User)
		return true

	case protocol.MsgPost:
		if msg.Post == nil {
			return false
		}
		s.upsertPost(*msg.Post)
		return true

	case protocol.MsgFeed:
		if msg.Feed == nil {
			return false
		}
		s.posts = append([]types.Post(nil), msg.Feed...)
		return true

	case protocol.MsgRoom:
		switch {
		case msg.Rooms != nil:
			s.rooms = append([]types.ChatRoom(nil), msg.Rooms...)
			return true
		case msg.Room != nil:
			s.upsertRoom(*msg.Room)
			return true
		}
		return false

	case protocol.MsgRoomMessage:
		switch {
		case msg.RoomMessages != nil:
			s.roomMessages = append([]types.ChatMessage(nil), msg.RoomMessages...)
			return true
		case msg.RoomMessage != nil:
			return s.appendRoomMessage(*msg.RoomMessage)
		}
		return false

	case protocol.MsgPrivateMessage:
		switch {
		case msg.PrivateMessages != nil:
			s.privateMessages = append([]types.PrivateMessage(nil), msg.PrivateMessages...)
			return true
		case msg.PrivateMessage != nil:
			s.appendPrivateMessage(*msg.PrivateMessage)
			return true
		}
		return false

	case protocol.MsgFriend:
		switch {
		case msg.Friends != nil:
			s.friends = make(map[string]struct{}, len(msg.Friends))
			for _, id := range msg.Friends {
				s.friends[id] = struct{}{}
			}
			return true
		case msg.Friendship != nil:
			return s.addFriendship(msg.Friendship)
		}
		return false

	case protocol.MsgError:
		if msg.Err == nil {
			return false
		}
		s.errs = append(s.errs, *msg.Err)
		if len(s.errs) > errLogMax {
			s.errs = s.errs[len(s.errs)-errLogMax:]
		}
		return true

	case protocol.MsgEvent:
		if msg.Event == nil {
			return false
		}
		return s.applyEvent(msg.Event)
	}

	return false
}

func (s *Store) applyEvent(ev *protocol.Event) bool {
	switch ev.Name {
	case protocol.EventNewPost:
		if ev.Post == nil {
			return false
		}
		s.upsertPost(*ev.Post)
		return true

	case protocol.EventNewRoomMessage:
		if ev.RoomMessage == nil {
			return false
		}
		// Messages for rooms that are not selected are dropped on
		// arrival; the log is populated by an explicit fetch when the
		// room becomes active.
		if ev.RoomId != s.currentRoomId {
			return false
		}
		return s.appendRoomMessage(*ev.RoomMessage)

	case protocol.EventNewPrivateMessage:
		if ev.PrivateMessage == nil {
			return false
		}
		s.appendPrivateMessage(*ev.PrivateMessage)
		return true

	case protocol.EventFriendRequest:
		if ev.From == "" {
			return false
		}
		s.friends[ev.From] = struct{}{}
		return true

	case protocol.EventFriendAccepted:
		if ev.PeerId == "" {
			return false
		}
		s.friends[ev.PeerId] = struct{}{}
		return true

	case protocol.EventUserOnline:
		if ev.PeerId == "" {
			return false
		}
		s.online[ev.PeerId] = struct{}{}
		return true

	case protocol.EventUserOffline:
		if ev.PeerId == "" {
			return false
		}
		delete(s.online, ev.PeerId)
		return true
	}

	return false
}

func (s *Store) upsertUser(u types.User) {
	s.users[u.Id] = u
	if s.profile != nil && s.profile.Id == u.Id {
		// The placeholder (or an older record) is replaced as soon as
		// the real record arrives.
		s.profile = &u
	}
}

// upsertPost prepends an unseen post and replaces a known one in
// place, keeping its prior position.
func (s *Store) upsertPost(p types.Post) {
	for i := range s.posts {
		if s.posts[i].Id == p.Id {
			s.posts[i] = p
			return
		}
	}
	s.posts = append([]types.Post{p}, s.posts...)
}

func (s *Store) upsertRoom(r types.ChatRoom) {
	for i := range s.rooms {
		if s.rooms[i].Id == r.Id {
			s.rooms[i] = r
			return
		}
	}
	s.rooms = append(s.rooms, r)
}

func (s *Store) appendRoomMessage(m types.ChatMessage) bool {
	if m.RoomId != s.currentRoomId {
		return false
	}
	for i := range s.roomMessages {
		if s.roomMessages[i].Id == m.Id {
			s.roomMessages[i] = m
			return true
		}
	}
	s.roomMessages = append(s.roomMessages, m)
	return true
}

func (s *Store) appendPrivateMessage(m types.PrivateMessage) {
	for i := range s.privateMessages {
		if s.privateMessages[i].Id == m.Id {
			s.privateMessages[i] = m
			return
		}
	}
	s.privateMessages = append(s.privateMessages, m)
}

// addFriendship records the counterpart of a friendship involving this
// client. Membership only ever grows within a session.
func (s *Store) addFriendship(f *types.Friendship) bool {
	if s.selfId == "" {
		return false
	}
	other := ""
	switch s.selfId {
	case f.RequesterId:
		other = f.AddresseeId
	case f.AddresseeId:
		other = f.RequesterId
	default:
		return false
	}
	s.friends[other] = struct{}{}
	return true
}

// SetSelfId tells the store which peer this client authenticated as.
func (s *Store) SetSelfId(id string) {
	s.mu.Lock()
	s.selfId = id
	s.mu.Unlock()
}

// SetCurrentRoom selects the active room. The room log empties until
// an explicit fetch repopulates it; pushes for other rooms stay
// dropped window-by-window.
func (s *Store) SetCurrentRoom(id string) {
	s.mu.Lock()
	if s.currentRoomId == id {
		s.mu.Unlock()
		return
	}
	s.currentRoomId = id
	s.roomMessages = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) CurrentRoomId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoomId
}

func (s *Store) CurrentRoom() (types.ChatRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.rooms {
		if s.rooms[i].Id == s.currentRoomId {
			return s.rooms[i], true
		}
	}
	return types.ChatRoom{}, false
}

// ShowProfile selects a profile target. If the user is not cached yet
// a placeholder derived from the id is shown until the record arrives.
func (s *Store) ShowProfile(id string) {
	s.mu.Lock()
	if u, ok := s.users[id]; ok {
		s.profile = &u
	} else {
		username := id
		if len(username) > 8 {
			username = username[:8]
		}
		s.profile = &types.User{Id: id, Username: username}
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) CloseProfile() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) Profile() (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return types.User{}, false
	}
	return *s.profile, true
}

// Reset clears every collection. Called when the session drops back to
// unauthenticated (teardown or identity change).
func (s *Store) Reset() {
	s.mu.Lock()
	s.selfId = ""
	s.users = make(map[string]types.User)
	s.posts = nil
	s.rooms = nil
	s.currentRoomId = ""
	s.roomMessages = nil
	s.privateMessages = nil
	s.friends = make(map[string]struct{})
	s.online = make(map[string]struct{})
	s.profile = nil
	s.errs = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) Posts() []types.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Post(nil), s.posts...)
}

func (s *Store) Rooms() []types.ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ChatRoom(nil), s.rooms...)
}

func (s *Store) RoomMessages() []types.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ChatMessage(nil), s.roomMessages...)
}

func (s *Store) PrivateMessages() []types.PrivateMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.PrivateMessage(nil), s.privateMessages...)
}

func (s *Store) Friends() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.friends))
	for id := range s.friends {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Online() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) User(id string) (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// SelfId returns the authenticated peer id, or "" before
// authentication.
func (s *Store) SelfId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfId
}

// Self returns the authenticated user's record, if it has arrived.
func (s *Store) Self() (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selfId == "" {
		return types.User{}, false
	}
	u, ok := s.users[s.selfId]
	return u, ok
}

// Errors returns the retained application-level error stream, oldest
// first. Without correlation ids these cannot be tied to the commands
// that caused them.
func (s *Store) Errors() []protocol.ServerError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.ServerError(nil), s.errs...)
}
