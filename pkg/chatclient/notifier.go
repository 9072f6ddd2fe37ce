package chatclient

import (
	"sync"

	"github.com/google/uuid"
)

// Notifier decides when a local notification is worth showing.
type Notifier struct {
	self uuid.UUID

	mu      sync.RWMutex
	granted bool
}

func NewNotifier(self uuid.UUID, granted bool) *Notifier {
	return &Notifier{self: self, granted: granted}
}

func (n *Notifier) SetPermission(granted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.granted = granted
}

func (n *Notifier) permitted() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.granted
}

// ShouldNotifyMessage is true for messages from someone else while the
// conversation is not on screen.
func (n *Notifier) ShouldNotifyMessage(msg Message, visible bool) bool {
	return n.permitted() && msg.SenderID != n.self && !visible
}

func (n *Notifier) ShouldNotifyMatch() bool {
	return n.permitted()
}
