package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Frame is the wire envelope shared with the server.
type Frame struct {
	Type      string          `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	RefType string `json:"ref_type,omitempty"`
}

type MatchPayload struct {
	MatchID    uuid.UUID `json:"match_id"`
	UserLowID  uuid.UUID `json:"user_low_id"`
	UserHighID uuid.UUID `json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conn is a client websocket connection to the chat server.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens /ws on serverURL (http or https) with the bearer token.
func Dial(ctx context.Context, serverURL, token string) (*Conn, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(f)
}

func (c *Conn) Join(matchID uuid.UUID) error {
	return c.write(Frame{Type: "room_join", RoomID: &matchID})
}

func (c *Conn) Leave(matchID uuid.UUID) error {
	return c.write(Frame{Type: "room_leave", RoomID: &matchID})
}

func (c *Conn) Send(matchID uuid.UUID, content string) error {
	data, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	return c.write(Frame{Type: "message", RoomID: &matchID, Data: data})
}

// ReadLoop passes every frame to handle until the connection closes or ctx
// is done. Keepalive control frames are answered by the dialer.
func (c *Conn) ReadLoop(ctx context.Context, handle func(Frame)) error {
	go func() {
		<-ctx.Done()
		_ = c.ws.Close()
	}()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		handle(f)
	}
}

func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// FetchHistory loads the conversation history over HTTP.
func FetchHistory(ctx context.Context, client *http.Client, serverURL, token string, matchID uuid.UUID) ([]Message, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := strings.TrimRight(serverURL, "/") + "/api/v1/matches/" + matchID.String() + "/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e ErrorPayload
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("fetch history: status %d: %s", resp.StatusCode, e.Error)
	}

	var body struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("fetch history: decode: %w", err)
	}
	return body.Messages, nil
}
