// Package chat models the question and answer transcript kept for one recipe.
package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FailureReply is appended in place of an answer when the model call fails.
const FailureReply = "Sorry, I encountered an error. Please try again."

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID     uuid.UUID `json:"id"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// NewMessage stamps a message with an ID and the current time.
func NewMessage(sender Sender, text string) Message {
	return Message{ID: uuid.New(), Sender: sender, Text: text, At: time.Now()}
}

// RecipeContext is the read-only recipe text a conversation is about.
type RecipeContext struct {
	RecipeID     uuid.UUID
	Title        string
	Ingredients  []string
	Instructions []string
}

// String serializes the recipe as the plain text handed to the model.
func (c RecipeContext) String() string {
	return fmt.Sprintf("Title: %s\nIngredients: %s\nInstructions: %s",
		c.Title,
		strings.Join(c.Ingredients, ", "),
		strings.Join(c.Instructions, " "),
	)
}

// Transcript is an append-only, ordered list of messages.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// Append adds m to the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	t.messages = append(t.messages, m)
	t.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
