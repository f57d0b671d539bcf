package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

// ErrSessionNotFound is returned when a session token has no stored state.
var ErrSessionNotFound = errors.New("session not found")

// ErrStaleRequest is returned when a fenced write loses to a newer search.
var ErrStaleRequest = errors.New("superseded by a newer search")

// SessionStore is the key-value surface the session service runs on.
// RedisClient implements it; tests substitute an in-memory store.
type SessionStore interface {
	SetJSON(ctx context.Context, key string, value interface{}) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	AppendJSON(ctx context.Context, key string, value interface{}) error
	ListJSON(ctx context.Context, key string, each func(data []byte) error) error
	RefreshTTL(ctx context.Context, prefix string) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SessionService is the shared state container for a browsing session: the
// last search's results, its status/error, and the chat transcript. Each
// write path is single-writer per session (the submission handler or the
// async worker), but responses from overlapping submissions can arrive in
// any order, so result writes are fenced: only the fencing id issued by the
// most recent submission may store results.
type SessionService struct {
	store SessionStore
}

// NewSessionService creates a new SessionService.
func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{store: store}
}

func sessionKey(token, suffix string) string {
	return fmt.Sprintf("session:%s:%s", token, suffix)
}

// Create initialises a new session and returns it.
func (s *SessionService) Create(ctx context.Context) (*models.Session, error) {
	session := &models.Session{
		Token:     uuid.New().String(),
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.SetJSON(ctx, sessionKey(session.Token, "meta"), session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Get retrieves session metadata.
func (s *SessionService) Get(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := s.store.GetJSON(ctx, sessionKey(token, "meta"), &session); err != nil {
		if IsMiss(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Exists checks whether a session token is valid.
func (s *SessionService) Exists(ctx context.Context, token string) (bool, error) {
	return s.store.Exists(ctx, sessionKey(token, "meta"))
}

// Heartbeat refreshes the TTL on all keys for a session.
func (s *SessionService) Heartbeat(ctx context.Context, token string) error {
	return s.store.RefreshTTL(ctx, fmt.Sprintf("session:%s:", token))
}

// BeginSearch records a new submission: it resets the status and error,
// stamps a fresh fencing id, and returns that id. Any response still in
// flight for an earlier submission will fail its fenced write.
func (s *SessionService) BeginSearch(ctx context.Context, token, query string) (string, error) {
	session, err := s.Get(ctx, token)
	if err != nil {
		return "", err
	}
	session.Query = query
	session.Status = "scraping"
	session.ErrorMessage = ""
	session.FencingID = uuid.New().String()

	if err := s.store.SetJSON(ctx, sessionKey(token, "meta"), session); err != nil {
		return "", fmt.Errorf("begin search: %w", err)
	}
	return session.FencingID, nil
}

// UpdateStatus changes the session status if fencingID is still current.
func (s *SessionService) UpdateStatus(ctx context.Context, token, fencingID, status string) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if session.FencingID != fencingID {
		return ErrStaleRequest
	}
	session.Status = status
	return s.store.SetJSON(ctx, sessionKey(token, "meta"), session)
}

// SetError marks the session as errored, subject to fencing.
func (s *SessionService) SetError(ctx context.Context, token, fencingID, msg string) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if session.FencingID != fencingID {
		return ErrStaleRequest
	}
	session.Status = "error"
	session.ErrorMessage = msg
	return s.store.SetJSON(ctx, sessionKey(token, "meta"), session)
}

// StoreResults saves a scrape response and marks the session complete. The
// write is dropped with ErrStaleRequest when a newer search has begun since
// fencingID was issued.
func (s *SessionService) StoreResults(ctx context.Context, token, fencingID string, results *models.ScrapeResponse) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if session.FencingID != fencingID {
		return ErrStaleRequest
	}

	if err := s.store.SetJSON(ctx, sessionKey(token, "results"), results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}

	session.Status = "complete"
	session.ErrorMessage = ""
	return s.store.SetJSON(ctx, sessionKey(token, "meta"), session)
}

// GetResults retrieves the last stored scrape response.
func (s *SessionService) GetResults(ctx context.Context, token string) (*models.ScrapeResponse, error) {
	var results models.ScrapeResponse
	if err := s.store.GetJSON(ctx, sessionKey(token, "results"), &results); err != nil {
		if IsMiss(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &results, nil
}

// AppendMessage adds one message to the session transcript.
func (s *SessionService) AppendMessage(ctx context.Context, token string, msg models.ChatMessage) error {
	return s.store.AppendJSON(ctx, sessionKey(token, "chat"), msg)
}

// GetTranscript returns the ordered transcript for a session. A session
// with no messages yields an empty slice.
func (s *SessionService) GetTranscript(ctx context.Context, token string) ([]models.ChatMessage, error) {
	transcript := []models.ChatMessage{}
	err := s.store.ListJSON(ctx, sessionKey(token, "chat"), func(data []byte) error {
		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		transcript = append(transcript, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transcript, nil
}

// ClearTranscript empties the transcript unconditionally.
func (s *SessionService) ClearTranscript(ctx context.Context, token string) error {
	return s.store.Delete(ctx, sessionKey(token, "chat"))
}
