package model

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityType labels the real-world kind of an entity mention.
type EntityType string

const (
	TypePerson EntityType = "PERSON"
	TypeOrg    EntityType = "ORG"
	TypeGPE    EntityType = "GPE"
)

// Mention is one occurrence of an entity name in the source text, as produced
// by the external recognizer. Immutable once ingested; Normalized is filled
// during ingest and used only for candidate grouping, never for output.
type Mention struct {
	ID         string     `json:"id"`
	Surface    string     `json:"surface"`
	Normalized string     `json:"normalized,omitempty"`
	Type       EntityType `json:"entity_type"`
	Start      int        `json:"start"`
	End        int        `json:"end"` // exclusive
	Confidence float64    `json:"confidence"`
}

// Validate checks the recognizer-feed contract for a single mention.
func (m Mention) Validate() error {
	if m.Surface == "" {
		return fmt.Errorf("mention %s: empty surface text", m.ID)
	}
	if m.Type == "" {
		return fmt.Errorf("mention %s: missing entity type", m.ID)
	}
	if m.End < m.Start {
		return fmt.Errorf("mention %s: span end %d before start %d", m.ID, m.End, m.Start)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("mention %s: confidence %f outside [0,1]", m.ID, m.Confidence)
	}
	return nil
}

// EnsureID mints a UUID for mentions the feed delivered without one.
func (m *Mention) EnsureID() {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
}

// Document is the unit of work: the source text (optional, used for oracle
// context) and the flat recognizer mention feed for that text.
type Document struct {
	Text     string    `json:"text,omitempty"`
	Mentions []Mention `json:"mentions"`
}

// Context returns a window of at most radius runes on each side of the span,
// or an empty string when the document carries no text. Used to collect
// distinguishing terms around a mention.
func (d Document) Context(m Mention, radius int) string {
	if d.Text == "" {
		return ""
	}
	runes := []rune(d.Text)
	start, end := m.Start, m.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		return ""
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(runes) {
		hi = len(runes)
	}
	return string(runes[lo:hi])
}
