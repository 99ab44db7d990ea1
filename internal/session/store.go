package session

import (
	"encoding/json"

	"github.com/communitas-app/session_layer/internal/logging"
	"github.com/communitas-app/session_layer/internal/observable"
	"github.com/communitas-app/session_layer/internal/storage"
)

// Storage keys for the persisted session record.
const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
)

// Store holds the current session, persists it across restarts, and
// broadcasts changes. SetSession and Clear are the only publish points;
// persistence always completes before the in-memory value flips, so no
// observer can see the two disagree.
type Store struct {
	storage storage.Store
	logger  *logging.Logger
	cell    *observable.Cell[*Session]
}

// NewStore creates a session store over the given durable storage.
func NewStore(st storage.Store, logger *logging.Logger) *Store {
	return &Store{
		storage: st,
		logger:  logger.OrDiscard(),
		cell:    observable.NewCell[*Session](nil),
	}
}

// Hydrate reconstructs a session from durable storage at startup. A
// missing, partial, or malformed record means "no session": it is
// logged and never surfaced as an error. On success the session is
// published like any other session change.
func (s *Store) Hydrate() *Session {
	token, ok, err := s.storage.Get(KeyToken)
	if err != nil {
		s.logger.WithError(err).Warn("Reading persisted token failed, treating as signed out")
		return nil
	}
	if !ok || token == "" {
		return nil
	}

	raw, ok, err := s.storage.Get(KeyUser)
	if err != nil {
		s.logger.WithError(err).Warn("Reading persisted user failed, treating as signed out")
		return nil
	}
	if !ok {
		s.logger.Warn("Persisted session has token but no user record, treating as signed out")
		return nil
	}

	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		s.logger.WithError(err).Warn("Persisted user record is malformed, treating as signed out")
		return nil
	}

	sess := &Session{Token: token, Claims: claims, Source: SourceHydrated}
	s.cell.Set(sess)
	return sess
}

// SetSession persists the token and user record, swaps the in-memory
// session, and publishes it to subscribers.
func (s *Store) SetSession(token string, claims Claims) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	if err := s.storage.Set(KeyToken, token); err != nil {
		return err
	}
	if err := s.storage.Set(KeyUser, string(raw)); err != nil {
		return err
	}
	s.cell.Set(&Session{Token: token, Claims: claims, Source: SourceLogin})
	return nil
}

// Clear removes the persisted session, drops the in-memory value, and
// publishes nil.
func (s *Store) Clear() error {
	if err := s.storage.Delete(KeyToken); err != nil {
		return err
	}
	if err := s.storage.Delete(KeyUser); err != nil {
		return err
	}
	s.cell.Set(nil)
	return nil
}

// Current returns the in-memory session, nil when signed out.
func (s *Store) Current() *Session {
	return s.cell.Get()
}

// Token returns the current auth token, empty when signed out.
func (s *Store) Token() string {
	if sess := s.cell.Get(); sess != nil {
		return sess.Token
	}
	return ""
}

// Subscribe registers fn for session changes. Notification is
// synchronous and in subscription order; fn receives nil on sign-out.
func (s *Store) Subscribe(fn func(*Session)) func() {
	return s.cell.Subscribe(fn)
}
