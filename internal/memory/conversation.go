package memory

import (
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/models"
)

// Conversation is the ordered log of turns replayed into every reasoning
// step. It is not safe for concurrent use.
type Conversation struct {
	turns []models.ConversationTurn
	// MaxTurns bounds retention; 0 keeps every turn.
	MaxTurns int
}

func NewConversation(maxTurns int) *Conversation {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &Conversation{MaxTurns: maxTurns}
}

func (c *Conversation) Append(turn models.ConversationTurn) {
	c.turns = append(c.turns, turn)
	if c.MaxTurns > 0 && len(c.turns) > c.MaxTurns {
		dropped := len(c.turns) - c.MaxTurns
		c.turns = append(c.turns[:0:0], c.turns[dropped:]...)
	}
}

// AppendExchange records a human request and the assistant answer.
func (c *Conversation) AppendExchange(request, answer string) {
	c.Append(models.ConversationTurn{Role: models.RoleHuman, Content: request})
	c.Append(models.ConversationTurn{Role: models.RoleAssistant, Content: answer})
}

// History returns a copy of the retained turns in order.
func (c *Conversation) History() []models.ConversationTurn {
	out := make([]models.ConversationTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int { return len(c.turns) }

func (c *Conversation) Clear() {
	c.turns = nil
}

// Messages converts the history into chat messages for prompt replay.
func (c *Conversation) Messages() []*schema.Message {
	msgs := make([]*schema.Message, 0, len(c.turns))
	for _, t := range c.turns {
		switch t.Role {
		case models.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(t.Content))
		}
	}
	return msgs
}
