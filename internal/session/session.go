// Package session tracks authentication progress over the connection
// manager and drives data hydration every time authentication
// succeeds, including after reconnects.
package session

import (
	"fmt"
	"log"
	"sync"

	"github.com/gnsocial/peerchat/internal/connection"
	"github.com/gnsocial/peerchat/internal/protocol"
)

type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateAuthFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthFailed:
		return "auth failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Transport is the slice of the connection manager the session drives.
type Transport interface {
	Send(cmd protocol.Command) bool
	Subscribe(h connection.Handler) func()
	SubscribeState(h connection.StateHandler) func()
}

// IdentityStore provides the durable peer id and change notification.
type IdentityStore interface {
	Load() (string, error)
	Save(id string) error
	Clear() error
	Current() string
	Subscribe(fn func(string)) func()
}

// Collections is the slice of the reconciliation store the session
// manages across authentication boundaries.
type Collections interface {
	SetSelfId(id string)
	Reset()
}

type Session struct {
	transport Transport
	ident     IdentityStore
	coll      Collections
	log       *log.Logger
	token     string

	mu       sync.Mutex
	state    State
	identity string
	unsubs   []func()
	subs     map[int]func(State)
	nextSub  int
}

// New wires a session to its transport and identity source. The
// stored identity, if any, is loaded immediately; authentication waits
// for the transport to open.
func New(t Transport, ident IdentityStore, coll Collections, token string, logger *log.Logger) (*Session, error) {
	s := &Session{
		transport: t,
		ident:     ident,
		coll:      coll,
		log:       logger,
		token:     token,
		state:     StateDisconnected,
		subs:      make(map[int]func(State)),
	}

	if _, err := ident.Load(); err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	s.unsubs = append(s.unsubs,
		t.SubscribeState(s.onTransportState),
		t.Subscribe(s.onMessage),
		ident.Subscribe(s.onIdentityChanged),
	)

	return s, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the peer id of the current or most recent
// authentication attempt.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Subscribe registers fn to run on every state transition. The
// returned function unsubscribes.
func (s *Session) Subscribe(fn func(State)) func() {
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

// Login stores id durably and authenticates with it as soon as the
// transport allows.
func (s *Session) Login(id string) error {
	if err := s.ident.Save(id); err != nil {
		return err
	}
	// Saving the same id again produces no change notification, but a
	// login must still re-arm a failed or idle authentication.
	s.mu.Lock()
	rearmed := false
	if s.state == StateConnected || s.state == StateAuthFailed {
		s.tryAuthenticateLocked()
		rearmed = true
	}
	next := s.state
	s.mu.Unlock()

	if rearmed {
		s.notify(next)
	}
	return nil
}

// Logout clears the identity; collections reset via the identity
// change notification.
func (s *Session) Logout() error {
	return s.ident.Clear()
}

// Teardown detaches the session from its event sources and clears all
// derived state.
func (s *Session) Teardown() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.coll.Reset()
	s.notify(StateDisconnected)
}

func (s *Session) onTransportState(connected bool) {
	s.mu.Lock()
	if connected {
		s.state = StateConnected
		s.tryAuthenticateLocked()
	} else {
		s.state = StateDisconnected
	}
	next := s.state
	s.mu.Unlock()

	s.notify(next)
}

// tryAuthenticateLocked enters Authenticating when the transport is
// open and an identity is known. The auth command is sent exactly once
// per entry.
func (s *Session) tryAuthenticateLocked() {
	id := s.ident.Current()
	if id == "" {
		return
	}

	s.identity = id
	s.state = StateAuthenticating
	cmd := protocol.Auth{PeerId: id}
	if tok := attachableToken(s.token, s.log); tok != "" {
		cmd.Token = tok
	}
	if !s.transport.Send(cmd) {
		s.log.Println("auth send failed; waiting for transport")
	}
}

func (s *Session) onMessage(msg *protocol.ServerMessage) {
	if msg.Type != protocol.MsgAuth || msg.Auth == nil {
		return
	}

	s.mu.Lock()
	if s.state != StateAuthenticating {
		// No outstanding attempt; a stray auth result is ignored.
		s.mu.Unlock()
		return
	}
	if msg.Auth.PeerId != "" && msg.Auth.PeerId != s.identity {
		s.mu.Unlock()
		return
	}

	if !msg.Auth.Success {
		s.state = StateAuthFailed
		s.mu.Unlock()
		s.log.Printf("authentication rejected for %q", s.identity)
		s.notify(StateAuthFailed)
		return
	}

	s.state = StateAuthenticated
	id := s.identity
	s.mu.Unlock()

	s.coll.SetSelfId(id)
	s.hydrate(id)
	s.notify(StateAuthenticated)
}

// hydrate issues the fetch commands that rebuild initial state. Runs
// on every entry into Authenticated: reconnects lose all server-push
// continuity, so a fresh snapshot set is always needed.
func (s *Session) hydrate(id string) {
	s.transport.Send(protocol.GetFeed{PeerId: id})
	s.transport.Send(protocol.GetRooms{})
	s.transport.Send(protocol.GetFriends{})
}

func (s *Session) onIdentityChanged(id string) {
	s.mu.Lock()
	prev := s.identity

	if id == "" {
		// Logged out, possibly from another process.
		s.identity = ""
		if s.state != StateDisconnected {
			s.state = StateConnected
		}
		next := s.state
		s.mu.Unlock()

		s.coll.Reset()
		s.notify(next)
		return
	}

	if id == prev && s.state == StateAuthenticated {
		s.mu.Unlock()
		return
	}

	// A new identity invalidates everything derived from the old one.
	reset := prev != "" && id != prev
	if s.state != StateDisconnected {
		s.state = StateConnected
		if reset {
			s.identity = id
		}
	}
	next := s.state
	s.mu.Unlock()

	if reset {
		s.coll.Reset()
	}

	s.mu.Lock()
	if s.state == StateConnected {
		s.tryAuthenticateLocked()
	}
	next = s.state
	s.mu.Unlock()

	s.notify(next)
}

func (s *Session) notify(state State) {
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
