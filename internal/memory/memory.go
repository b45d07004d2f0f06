// Package memory holds the bounded conversation window used to build
// responder context.
//
// Memory is session-scoped: nothing is persisted and a restart starts with an
// empty window. The persona/system prompt is not stored here; it is injected
// by the responder at request time.
package memory

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one (role, text) entry of the conversation.
type Turn struct {
	Role Role
	Text string
}

// Conversation is a FIFO-bounded, insertion-ordered log of turns.
//
// It is owned by the consumer loop and is not safe for concurrent use.
type Conversation struct {
	turns    []Turn
	maxTurns int
}

// NewConversation returns an empty conversation retaining at most maxTurns
// turns. A non-positive maxTurns is treated as 1.
func NewConversation(maxTurns int) *Conversation {
	if maxTurns < 1 {
		maxTurns = 1
	}
	return &Conversation{
		turns:    make([]Turn, 0, maxTurns),
		maxTurns: maxTurns,
	}
}

// Append adds t to the end of the conversation, evicting the oldest turns so
// that at most MaxTurns remain.
func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
	if over := len(c.turns) - c.maxTurns; over > 0 {
		// Copy into a fresh array so evicted turns do not pin memory.
		kept := make([]Turn, c.maxTurns, c.maxTurns)
		copy(kept, c.turns[over:])
		c.turns = kept
	}
}

// AppendUser is shorthand for Append(Turn{RoleUser, text}).
func (c *Conversation) AppendUser(text string) { c.Append(Turn{Role: RoleUser, Text: text}) }

// AppendAssistant is shorthand for Append(Turn{RoleAssistant, text}).
func (c *Conversation) AppendAssistant(text string) {
	c.Append(Turn{Role: RoleAssistant, Text: text})
}

// Window returns a copy of the retained turns, oldest first.
func (c *Conversation) Window() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of retained turns.
func (c *Conversation) Len() int { return len(c.turns) }
