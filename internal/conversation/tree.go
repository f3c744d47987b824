package conversation

import (
	"encoding/json"
	"strings"
)

// Role is the author role of a message node.
type Role string

// Roles that drive extraction. Any other non-system role answers the
// pending prompt.
const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Tree is one exported conversation.
type Tree struct {
	Title   string   `json:"title,omitempty"`
	Mapping *Mapping `json:"mapping"`
}

// Mapping holds the message nodes of a tree in the order they appear in the
// exported JSON object. Exports must list nodes in conversational order;
// extraction does not reorder them.
type Mapping struct {
	IDs   []string
	Nodes []Node
}

// Node is a single entry of a tree's mapping.
type Node struct {
	ID       string   `json:"id"`
	Message  *Message `json:"message"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
}

// Message is the payload of a node.
type Message struct {
	Author  Author   `json:"author"`
	Content *Content `json:"content"`
}

// Author identifies who wrote a message.
type Author struct {
	Role Role `json:"role"`
}

// Content carries message text either as parts or as a text field.
type Content struct {
	ContentType string            `json:"content_type,omitempty"`
	Parts       []json.RawMessage `json:"parts,omitempty"`
	Text        *string           `json:"text,omitempty"`
}

// UnmarshalJSON decodes the mapping object preserving member order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	*m = Mapping{}
	return decodeObject(data, func(key string, dec *json.Decoder) error {
		var n Node
		if err := dec.Decode(&n); err != nil {
			return err
		}
		m.IDs = append(m.IDs, key)
		m.Nodes = append(m.Nodes, n)
		return nil
	})
}

// MarshalJSON encodes the mapping as an object in stored order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range m.IDs {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.Nodes[i])
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Text returns the message text: the first part when parts are present,
// otherwise the text field. String parts are returned verbatim, other JSON
// values as their JSON encoding; a null part yields "".
func (m *Message) Text() string {
	if m == nil || m.Content == nil {
		return ""
	}
	c := m.Content
	if len(c.Parts) > 0 {
		raw := c.Parts[0]
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		trimmed := strings.TrimSpace(string(raw))
		if trimmed == "null" {
			return ""
		}
		return trimmed
	}
	if c.Text != nil {
		return *c.Text
	}
	return ""
}
