// Package store is the single source of truth for on-device state. The whole
// state lives under one key of a Backend and every mutation rewrites it after
// the retention policy has been applied.
//
// Writers inside one process are serialized by Store. Several processes
// sharing a backend are not coordinated: the last write wins.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/guyfedwards/feedstash/internal/constants"
	"github.com/guyfedwards/feedstash/internal/logging"
	"github.com/guyfedwards/feedstash/internal/model"
)

// Backend is a synchronous string key/value store with browser local
// storage semantics. SetItem must replace the value atomically and leave the
// old value in place when it fails.
type Backend interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Close() error
}

var (
	ErrSourceExists   = errors.New("store.AddSource: source already exists")
	ErrSourceNotFound = errors.New("store: source not found")
)

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.log = logging.OrDiscard(l)
	}
}

func WithLimits(l Limits) Option {
	return func(s *Store) {
		s.limits = l.withDefaults()
	}
}

// WithKey overrides the storage key, mostly so tests can share a backend.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type Store struct {
	mu      sync.Mutex
	backend Backend
	key     string
	limits  Limits
	log     *log.Logger
	now     func() time.Time
}

func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		key:     constants.StorageKey,
		limits:  DefaultLimits(),
		log:     logging.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

func (s *Store) Limits() Limits {
	return s.limits
}

// Read returns the stored state, or the default state when nothing usable
// is stored. A corrupt blob is removed so later reads don't trip on it.
func (s *Store) Read() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() model.State {
	raw, ok, err := s.backend.GetItem(s.key)
	if err != nil {
		s.log.Error("store read failed, using defaults", "key", s.key, "err", err)
		return model.DefaultState()
	}
	if !ok || raw == "" {
		return model.DefaultState()
	}

	state, err := decodeState(raw)
	if err != nil {
		s.log.Warn("stored state is corrupt, resetting", "key", s.key, "err", err)
		if rmErr := s.backend.RemoveItem(s.key); rmErr != nil {
			s.log.Error("could not clear corrupt state", "key", s.key, "err", rmErr)
		}
		return model.DefaultState()
	}
	return state
}

func decodeState(raw string) (model.State, error) {
	var state model.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return model.State{}, err
	}
	state.FillDefaults()
	return state, nil
}

// Write applies the retention policy and stores the whole state. If the
// backend rejects the write the previously stored state is left as it was.
func (s *Store) Write(state model.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(state)
}

func (s *Store) write(state model.State) error {
	state = Cleanup(state, s.limits)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store.Write: %w", err)
	}

	if s.limits.MaxBytes > 0 && len(data) > s.limits.MaxBytes {
		s.log.Warn("state exceeds storage size limit", "bytes", len(data), "limit", s.limits.MaxBytes)
	}

	if err := s.backend.SetItem(s.key, string(data)); err != nil {
		s.log.Error("store write failed, previous state kept", "key", s.key, "bytes", len(data), "err", err)
		return fmt.Errorf("store.Write: %w", err)
	}

	s.log.Debug("state written", "items", len(state.Items), "bytes", len(data))
	return nil
}

// Update runs a read-modify-write cycle. The returned state is what was
// written, after cleanup.
func (s *Store) Update(fn func(*model.State)) (model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.read()
	fn(&state)
	state = Cleanup(state, s.limits)
	if err := s.write(state); err != nil {
		return s.read(), err
	}
	return state, nil
}

// TryUpdate is Update for mutations that can fail. When fn returns an error
// nothing is written and the error is returned as is.
func (s *Store) TryUpdate(fn func(*model.State) error) (model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.read()
	if err := fn(&state); err != nil {
		return model.State{}, err
	}
	state = Cleanup(state, s.limits)
	if err := s.write(state); err != nil {
		return s.read(), err
	}
	return state, nil
}

func (s *Store) SetTheme(theme string) error {
	_, err := s.Update(func(st *model.State) {
		st.Theme = theme
	})
	return err
}

func (s *Store) SetLanguage(lang string) error {
	_, err := s.Update(func(st *model.State) {
		st.Language = lang
	})
	return err
}

func (s *Store) SetNavigation(nav model.Navigation) error {
	if !nav.Valid() {
		return fmt.Errorf("store.SetNavigation: unknown navigation %q", nav)
	}
	_, err := s.Update(func(st *model.State) {
		st.Navigation = nav
	})
	return err
}

func (s *Store) SetScrollPosition(pos int) error {
	_, err := s.Update(func(st *model.State) {
		st.ScrollPosition = pos
	})
	return err
}
