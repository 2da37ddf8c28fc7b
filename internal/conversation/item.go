package conversation

import (
	"encoding/json"
	"fmt"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Item type values produced and consumed by the computer-use agent.
const (
	TypeMessage            = "message"
	TypeComputerCall       = "computer_call"
	TypeComputerCallOutput = "computer_call_output"
	TypeReasoning          = "reasoning"
)

// Item is one entry exchanged with the agent. Plain turns only carry Role and
// Content; computer-use records carry the call fields.
type Item struct {
	Type    string   `json:"type,omitempty"`
	ID      string   `json:"id,omitempty"`
	Role    Role     `json:"role,omitempty"`
	Content *Content `json:"content,omitempty"`
	Status  string   `json:"status,omitempty"`

	CallID                   string          `json:"call_id,omitempty"`
	Action                   *Action         `json:"action,omitempty"`
	PendingSafetyChecks      []SafetyCheck   `json:"pending_safety_checks,omitempty"`
	AcknowledgedSafetyChecks []SafetyCheck   `json:"acknowledged_safety_checks,omitempty"`
	Output                   *CallOutput     `json:"output,omitempty"`
	Summary                  json.RawMessage `json:"summary,omitempty"`
}

// IsAssistantMessage reports whether the item is a final assistant message.
func (it Item) IsAssistantMessage() bool {
	return it.Type == TypeMessage && it.Role == RoleAssistant
}

// Text returns the primary text of the item's content, or "".
func (it Item) Text() string {
	if it.Content == nil {
		return ""
	}
	return it.Content.Text()
}

// ContentPart is one element of structured content.
type ContentPart struct {
	Type        string          `json:"type"`
	Text        string          `json:"text,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`
}

// Content is either a plain string or an ordered list of parts. It
// serializes back to whichever form it was built from.
type Content struct {
	plain string
	parts []ContentPart
}

// PlainText builds string content.
func PlainText(s string) *Content {
	return &Content{plain: s}
}

// Parts builds structured content.
func Parts(parts ...ContentPart) *Content {
	return &Content{parts: parts}
}

// Structured reports whether the content is a list of parts.
func (c *Content) Structured() bool {
	return c.parts != nil
}

// PartList returns a copy of the structured parts.
func (c *Content) PartList() []ContentPart {
	out := make([]ContentPart, len(c.parts))
	copy(out, c.parts)
	return out
}

// Text returns the plain string, or the text of the first part.
func (c *Content) Text() string {
	if c.parts == nil {
		return c.plain
	}
	if len(c.parts) == 0 {
		return ""
	}
	return c.parts[0].Text
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.parts != nil {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.plain)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.plain, c.parts = s, nil
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content is neither a string nor a part list: %w", err)
	}
	if parts == nil {
		parts = []ContentPart{}
	}
	c.plain, c.parts = "", parts
	return nil
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Action is a single actuator instruction requested by the agent.
type Action struct {
	Type    string   `json:"type"`
	X       int      `json:"x,omitempty"`
	Y       int      `json:"y,omitempty"`
	Button  string   `json:"button,omitempty"`
	ScrollX int      `json:"scroll_x,omitempty"`
	ScrollY int      `json:"scroll_y,omitempty"`
	Text    string   `json:"text,omitempty"`
	Keys    []string `json:"keys,omitempty"`
	Path    []Point  `json:"path,omitempty"`
}

// SafetyCheck is a warning the agent attaches to a computer call.
type SafetyCheck struct {
	ID      string `json:"id"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// CallOutput answers a computer call with the page state after the action.
type CallOutput struct {
	Type       string `json:"type"`
	ImageURL   string `json:"image_url,omitempty"`
	CurrentURL string `json:"current_url,omitempty"`
}

// SystemTurn builds the briefing turn.
func SystemTurn(text string) Item {
	return Item{Role: RoleSystem, Content: PlainText(text)}
}

// UserTurn builds a user prompt turn.
func UserTurn(text string) Item {
	return Item{Role: RoleUser, Content: PlainText(text)}
}

// AssistantMessage builds a final assistant message the way the agent
// returns one.
func AssistantMessage(text string) Item {
	return Item{
		Type:    TypeMessage,
		Role:    RoleAssistant,
		Content: Parts(ContentPart{Type: "output_text", Text: text}),
	}
}
