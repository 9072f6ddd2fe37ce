package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const joinTimeout = 10 * time.Second

var (
	ErrNotJoined    = errors.New("conversation is not open")
	ErrJoinRejected = errors.New("join rejected")
)

// Session is one open conversation: the connection, the reconciled
// sequence and notification gating.
type Session struct {
	conn       *Conn
	controller *Controller
	notifier   *Notifier
	matchID    uuid.UUID

	mu      sync.Mutex
	joined  bool
	visible bool
	joinAck chan error

	// OnNotify is called for events that pass the notifier.
	OnNotify func(title, body string)
	// OnMatch receives match_created events.
	OnMatch func(MatchPayload)
	// OnError receives server error frames.
	OnError func(ErrorPayload)
}

func NewSession(conn *Conn, controller *Controller, notifier *Notifier, matchID uuid.UUID) *Session {
	return &Session{
		conn:       conn,
		controller: controller,
		notifier:   notifier,
		matchID:    matchID,
		visible:    true,
	}
}

// Open joins the room, waits for the server to confirm it, then seeds the
// controller from history. Joining first means any message persisted after
// the history query is still delivered live. Conn.ReadLoop must already be
// running with Handle.
func (s *Session) Open(ctx context.Context, client *http.Client, serverURL, token string) error {
	ack := make(chan error, 1)
	s.mu.Lock()
	s.joinAck = ack
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.joinAck = nil
		s.mu.Unlock()
	}()

	if err := s.conn.Join(s.matchID); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	select {
	case err := <-ack:
		if err != nil {
			return err
		}
	case <-waitCtx.Done():
		return fmt.Errorf("join: %w", waitCtx.Err())
	}

	s.mu.Lock()
	s.joined = true
	s.mu.Unlock()

	history, err := FetchHistory(ctx, client, serverURL, token, s.matchID)
	if err != nil {
		return err
	}
	s.controller.Seed(history)
	return nil
}

func (s *Session) acknowledge(err error) {
	s.mu.Lock()
	ack := s.joinAck
	s.joinAck = nil
	s.mu.Unlock()
	if ack != nil {
		ack <- err
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	joined := s.joined
	s.joined = false
	s.mu.Unlock()

	s.controller.Close()
	if !joined {
		return nil
	}
	return s.conn.Leave(s.matchID)
}

func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

// Send shows the message at once and sends it. A send error rolls it back.
func (s *Session) Send(content string) (string, error) {
	s.mu.Lock()
	joined := s.joined
	s.mu.Unlock()
	if !joined {
		return "", ErrNotJoined
	}

	content = strings.TrimSpace(content)
	tempID, err := s.controller.Submit(content)
	if err != nil {
		return "", err
	}
	if err := s.conn.Send(s.matchID, content); err != nil {
		s.controller.Fail(tempID)
		return "", err
	}
	return tempID, nil
}

// Handle applies one server frame. It is meant as the Conn.ReadLoop callback.
func (s *Session) Handle(f Frame) {
	switch f.Type {
	case "new_message":
		var msg Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return
		}
		if !s.controller.OnBroadcast(msg) {
			return
		}
		s.mu.Lock()
		visible := s.visible
		s.mu.Unlock()
		if s.notifier != nil && s.OnNotify != nil && s.notifier.ShouldNotifyMessage(msg, visible) {
			s.OnNotify("New message", msg.Content)
		}

	case "match_created":
		var m MatchPayload
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return
		}
		if s.OnMatch != nil {
			s.OnMatch(m)
		}
		if s.notifier != nil && s.OnNotify != nil && s.notifier.ShouldNotifyMatch() {
			s.OnNotify("It's a match!", "You have a new match")
		}

	case "match_removed":
		if f.RoomID != nil && *f.RoomID == s.matchID {
			s.mu.Lock()
			s.joined = false
			s.mu.Unlock()
		}

	case "room_users":
		if f.RoomID != nil && *f.RoomID == s.matchID {
			s.acknowledge(nil)
		}

	case "error":
		var e ErrorPayload
		if err := json.Unmarshal(f.Data, &e); err != nil {
			return
		}
		if e.RefType == "room_join" {
			s.acknowledge(fmt.Errorf("%w: %s: %s", ErrJoinRejected, e.Code, e.Error))
		}
		if s.OnError != nil {
			s.OnError(e)
		}
	}
}
