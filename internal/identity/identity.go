// Package identity persists the client's peer id across sessions and
// surfaces externally made changes (another process logging in against
// the same state directory) as subscription callbacks.
package identity

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gitlab.com/elixxir/ekv"
)

const peerIdKey = "peer_id"

type Store struct {
	kv  ekv.KeyValue
	log *log.Logger

	mu      sync.Mutex
	current string
	subs    map[int]func(string)
	nextSub int
}

func NewStore(kv ekv.KeyValue, logger *log.Logger) *Store {
	return &Store{
		kv:   kv,
		log:  logger,
		subs: make(map[int]func(string)),
	}
}

// Load reads the stored peer id. A missing key is not an error; it
// returns the empty string.
func (s *Store) Load() (string, error) {
	data, err := s.kv.GetBytes(peerIdKey)
	if err != nil {
		if !ekv.Exists(err) {
			return "", nil
		}
		return "", fmt.Errorf("read peer id: %w", err)
	}

	s.mu.Lock()
	s.current = string(data)
	s.mu.Unlock()

	return string(data), nil
}

// Save stores id durably and notifies subscribers.
func (s *Store) Save(id string) error {
	if id == "" {
		return fmt.Errorf("peer id cannot be empty")
	}
	if err := s.kv.SetBytes(peerIdKey, []byte(id)); err != nil {
		return fmt.Errorf("write peer id: %w", err)
	}

	s.update(id)
	return nil
}

// Clear removes the stored peer id and notifies subscribers with the
// empty string.
func (s *Store) Clear() error {
	if err := s.kv.Delete(peerIdKey); err != nil && ekv.Exists(err) {
		return fmt.Errorf("delete peer id: %w", err)
	}

	s.update("")
	return nil
}

func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn to run on every identity change, including
// changes observed by Watch. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(string)) func() {
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

// Watch polls the backing store until ctx is done, turning writes made
// by other processes into subscription callbacks. The backing store
// has no native change notification, so polling is the event source.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stored := ""
			if data, err := s.kv.GetBytes(peerIdKey); err == nil {
				stored = string(data)
			} else if ekv.Exists(err) {
				s.log.Println("identity watch:", err)
				continue
			}

			if stored != s.Current() {
				s.log.Printf("identity changed externally")
				s.update(stored)
			}
		}
	}
}

func (s *Store) update(id string) {
	s.mu.Lock()
	if s.current == id {
		s.mu.Unlock()
		return
	}
	s.current = id
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}
