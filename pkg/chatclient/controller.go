// Package chatclient is the client side of a conversation: it shows sent
// messages right away and reconciles them with the server broadcast.
package chatclient

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultConfirmTimeout = 10 * time.Second

var ErrEmptyMessage = errors.New("message is empty")

type Message struct {
	// ID is the server id. It is uuid.Nil while the message is pending.
	ID        uuid.UUID `json:"id"`
	MatchID   uuid.UUID `json:"match_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	TempID  string `json:"-"`
	Pending bool   `json:"-"`
}

type ControllerOptions struct {
	// ConfirmTimeout bounds how long a sent message stays pending.
	ConfirmTimeout time.Duration
	// OnChange receives a copy of the sequence after every change.
	OnChange func([]Message)
	// OnFailure is called when a pending message is rolled back.
	OnFailure func(tempID, content string)
}

// Controller owns the ordered message sequence of one conversation.
type Controller struct {
	self    uuid.UUID
	matchID uuid.UUID
	opts    ControllerOptions

	mu        sync.Mutex
	messages  []Message
	confirmed map[uuid.UUID]struct{}
	timers    map[string]*time.Timer
	draft     string
	seq       uint64
	now       func() time.Time
}

func NewController(self, matchID uuid.UUID, opts ControllerOptions) *Controller {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	return &Controller{
		self:      self,
		matchID:   matchID,
		opts:      opts,
		confirmed: make(map[uuid.UUID]struct{}),
		timers:    make(map[string]*time.Timer),
		now:       time.Now,
	}
}

// Seed merges the fetched history into the sequence. History comes first,
// then messages confirmed live that the history does not hold yet, then
// pending entries. Pending entries left without a timer by Close get a new
// one.
func (c *Controller) Seed(history []Message) {
	c.mu.Lock()

	var live, pending []Message
	for _, m := range c.messages {
		if m.Pending {
			pending = append(pending, m)
		} else {
			live = append(live, m)
		}
	}

	merged := make([]Message, 0, len(history)+len(live)+len(pending))
	seen := make(map[uuid.UUID]struct{}, len(history)+len(live))
	for _, m := range history {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		m.Pending = false
		m.TempID = ""
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range live {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range pending {
		if _, ok := c.timers[m.TempID]; !ok {
			c.armLocked(m.TempID)
		}
	}
	merged = append(merged, pending...)

	c.messages = merged
	c.confirmed = seen

	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snapshot)
}

func (c *Controller) armLocked(tempID string) {
	c.timers[tempID] = time.AfterFunc(c.opts.ConfirmTimeout, func() { c.rollback(tempID) })
}

func (c *Controller) SetDraft(draft string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = draft
}

func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit shows content as a pending message, clears the draft and starts
// the confirmation timer. The caller sends it to the server.
func (c *Controller) Submit(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	c.seq++
	tempID := "temp-" + strconv.FormatUint(c.seq, 10)
	c.messages = append(c.messages, Message{
		MatchID:   c.matchID,
		SenderID:  c.self,
		Content:   content,
		CreatedAt: c.now().UTC(),
		TempID:    tempID,
		Pending:   true,
	})
	c.draft = ""
	c.armLocked(tempID)

	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snapshot)
	return tempID, nil
}

// Fail rolls back a pending message whose send failed.
func (c *Controller) Fail(tempID string) {
	c.rollback(tempID)
}

// OnBroadcast applies a confirmed message from the server. It reports
// whether the sequence changed.
func (c *Controller) OnBroadcast(msg Message) bool {
	if msg.MatchID != uuid.Nil && msg.MatchID != c.matchID {
		return false
	}

	c.mu.Lock()
	if _, dup := c.confirmed[msg.ID]; dup {
		c.mu.Unlock()
		return false
	}
	c.confirmed[msg.ID] = struct{}{}
	msg.Pending = false
	msg.TempID = ""

	replaced := false
	if msg.SenderID == c.self {
		for i := range c.messages {
			m := &c.messages[i]
			if !m.Pending || m.Content != msg.Content {
				continue
			}
			if t, ok := c.timers[m.TempID]; ok {
				t.Stop()
				delete(c.timers, m.TempID)
			}
			*m = msg
			replaced = true
			break
		}
	}
	if !replaced {
		c.messages = append(c.messages, msg)
	}

	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snapshot)
	return true
}

func (c *Controller) rollback(tempID string) {
	c.mu.Lock()
	idx := -1
	for i, m := range c.messages {
		if m.Pending && m.TempID == tempID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}

	content := c.messages[idx].Content
	c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	if t, ok := c.timers[tempID]; ok {
		t.Stop()
		delete(c.timers, tempID)
	}
	c.draft = content

	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.opts.OnFailure != nil {
		c.opts.OnFailure(tempID, content)
	}
	c.changed(snapshot)
}

// Messages returns a copy of the current sequence.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.messages {
		if m.Pending {
			n++
		}
	}
	return n
}

// Close stops outstanding timers. Pending entries stay; a later Seed
// restarts their timers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Controller) snapshotLocked() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Controller) changed(snapshot []Message) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(snapshot)
	}
}
