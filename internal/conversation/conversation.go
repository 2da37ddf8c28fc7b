// Package conversation holds the ordered turn log replayed to the agent on
// every step.
package conversation

// Conversation is an append-only log of turns. It is owned by a single run
// and is not safe for concurrent use.
type Conversation struct {
	items []Item
}

// New seeds a conversation with the system briefing.
func New(briefing string) *Conversation {
	return &Conversation{items: []Item{SystemTurn(briefing)}}
}

// Append adds turns to the end of the log.
func (c *Conversation) Append(items ...Item) {
	c.items = append(c.items, items...)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.items)
}

// Items returns a copy of the log.
func (c *Conversation) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// With returns the full log followed by pending, without recording pending.
func (c *Conversation) With(pending ...Item) []Item {
	out := make([]Item, 0, len(c.items)+len(pending))
	out = append(out, c.items...)
	return append(out, pending...)
}

// Retained filters agent output down to the turns kept as context:
// assistant and system items, in produced order.
func Retained(output []Item) []Item {
	var kept []Item
	for _, it := range output {
		if it.Role == RoleAssistant || it.Role == RoleSystem {
			kept = append(kept, it)
		}
	}
	return kept
}
