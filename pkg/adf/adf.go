// Package adf reads and writes Atlassian Document Format trees, the rich-text
// representation Jira uses for issue descriptions and text custom fields.
package adf

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tags a document node.
type Kind string

const (
	KindDoc         Kind = "doc"
	KindParagraph   Kind = "paragraph"
	KindText        Kind = "text"
	KindHardBreak   Kind = "hardBreak"
	KindMedia       Kind = "media"
	KindMediaSingle Kind = "mediaSingle"
)

// DocVersion is the only ADF version Jira accepts.
const DocVersion = 1

// MediaPlaceholder stands in for embedded attachments in extracted text.
const MediaPlaceholder = "[Media attachment]"

// Node is one element of a document tree. Only text nodes carry Text; leaf
// kinds have no Content. Kinds outside the constants above are kept as-is.
type Node struct {
	Type    Kind           `json:"type"`
	Version int            `json:"version,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// wireNode fixes field order and lets containers emit "content": [] when empty.
type wireNode struct {
	Version int            `json:"version,omitempty"`
	Type    Kind           `json:"type"`
	Content *[]*Node       `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

func isLeaf(k Kind) bool {
	switch k {
	case KindText, KindHardBreak, KindMedia:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the node in the shape the Jira REST API expects.
func (n Node) MarshalJSON() ([]byte, error) {
	w := wireNode{Version: n.Version, Type: n.Type, Text: n.Text, Attrs: n.Attrs}
	if n.Type == KindDoc && w.Version == 0 {
		w.Version = DocVersion
	}
	if !isLeaf(n.Type) || len(n.Content) > 0 {
		content := n.Content
		if content == nil {
			content = []*Node{}
		}
		w.Content = &content
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts objects, bare strings (decoded as text nodes) and
// arrays (decoded as an untyped node whose children are the elements).
func (n *Node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Node{Type: KindText, Text: s}
		return nil
	case '[':
		var children []*Node
		if err := json.Unmarshal(data, &children); err != nil {
			return err
		}
		*n = Node{Content: children}
		return nil
	case '{':
		type plain Node
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*n = Node(p)
		return nil
	default:
		// numbers, booleans and null carry no text
		*n = Node{}
		return nil
	}
}

// ExtractText flattens a tree to plain text. Paragraphs end with a newline,
// hard breaks become newlines and media nodes become MediaPlaceholder.
func ExtractText(n *Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	writeText(&sb, n)
	return sb.String()
}

func writeText(sb *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case KindText:
		sb.WriteString(n.Text)
	case KindMedia, KindMediaSingle:
		sb.WriteString(MediaPlaceholder)
	case KindHardBreak:
		sb.WriteString("\n")
	case KindParagraph:
		writeChildren(sb, n)
		sb.WriteString("\n")
	default:
		writeChildren(sb, n)
	}
}

func writeChildren(sb *strings.Builder, n *Node) {
	for _, child := range n.Content {
		writeText(sb, child)
	}
}

// ExtractRaw flattens a raw JSON field value that may be an ADF object, a
// plain string, an array of either, or null. Malformed input yields "".
func ExtractRaw(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return ExtractText(&n)
}

// FromText encodes plain text as a document with one paragraph per line.
// Blank lines become empty paragraphs. The result always has at least one paragraph.
func FromText(text string) *Node {
	doc := &Node{Type: KindDoc, Version: DocVersion}
	if strings.TrimSpace(text) == "" {
		doc.Content = []*Node{Paragraph()}
		return doc
	}

	lines := strings.Split(text, "\n")
	doc.Content = make([]*Node, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			doc.Content = append(doc.Content, Paragraph())
			continue
		}
		doc.Content = append(doc.Content, Paragraph(TextNode(line)))
	}
	return doc
}

// Paragraph builds a paragraph node.
func Paragraph(children ...*Node) *Node {
	return &Node{Type: KindParagraph, Content: children}
}

// TextNode builds a text node.
func TextNode(text string) *Node {
	return &Node{Type: KindText, Text: text}
}
