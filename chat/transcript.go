// Package chat holds the conversation transcript and the controller that
// drives ask, clear and upload requests against the backend.
//
// Neither type is safe for concurrent use: the UI mutates them only from
// its update loop and hands the network call to a command goroutine
// between Begin and Complete.
package chat

import (
	"slices"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

// Role tells who authored a message.
type Role int

const (
	User Role = iota
	Bot
)

func (r Role) String() string {
	if r == Bot {
		return "bot"
	}
	return "user"
}

// Message is one transcript entry. Image is the bare asset name sent by
// the backend; see ImageRef for the display path.
type Message struct {
	Role      Role
	Content   string
	Timestamp string // HH:MM
	Table     *explorer.TableData
	Image     string
}

// HasTable reports whether the message carries a non-empty table.
func (m Message) HasTable() bool { return !m.Table.Empty() }

// Transcript is the ordered, append-only message log.
type Transcript struct {
	messages []Message
}

func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

// Messages returns a copy of all messages in order.
func (t *Transcript) Messages() []Message {
	return slices.Clone(t.messages)
}

func (t *Transcript) Len() int { return len(t.messages) }

// Last returns the newest message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Reset replaces the transcript with an empty one.
func (t *Transcript) Reset() {
	t.messages = nil
}
