package core

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Capitalize returns the role with its first letter upper-cased,
// the form used when rendering transcript lines.
func (r Role) Capitalize() string {
	s := string(r)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Part is one element of a multi-part turn content, as emitted by the
// host chat framework. Only parts with Type "text" carry prompt text.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Content holds a turn's content, which the host framework sends either
// as a plain string or as an ordered list of typed parts.
type Content struct {
	text   string
	parts  []Part
	isList bool // true when the parts form was used
}

func TextContent(s string) Content {
	return Content{text: s}
}

func PartsContent(parts ...Part) Content {
	return Content{parts: parts, isList: true}
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{text: s}
		return nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*c = Content{parts: parts, isList: true}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.isList {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

// Text extracts the plain text of the content: the string itself, or the
// text of all "text" parts joined by newline with empty parts dropped.
func (c Content) Text() string {
	if !c.isList {
		return c.text
	}
	texts := make([]string, 0, len(c.parts))
	for _, p := range c.parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Equals reports whether the content is exactly the given message, either
// as a plain string or as a single typed-text part with matching text.
func (c Content) Equals(message string) bool {
	if !c.isList {
		return c.text == message
	}
	return len(c.parts) == 1 && c.parts[0].Type == "text" && c.parts[0].Text == message
}

// Turn is one chat message supplied by the host framework. Read-only to
// the pipeline logic.
type Turn struct {
	Role    Role           `json:"role"`
	Content Content        `json:"content"`
	Info    map[string]any `json:"info,omitempty"`
}

func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: TextContent(content)}
}

func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: TextContent(content)}
}

func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: TextContent(content)}
}

// PopSystemTurn removes and returns a leading system turn, if present.
// The host framework prepends one; backends take instructions through the
// assembled prompt instead.
func PopSystemTurn(turns []Turn) (*Turn, []Turn) {
	if len(turns) > 0 && turns[0].Role == RoleSystem {
		return &turns[0], turns[1:]
	}
	return nil, turns
}

// LastAssistantTurn returns the most recent assistant turn, or nil.
func LastAssistantTurn(turns []Turn) *Turn {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			return &turns[i]
		}
	}
	return nil
}
