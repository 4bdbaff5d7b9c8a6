package session

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/wkalt/newsledger/news"
)

// Payload is the body of a session message. It is one of Text, RecordAdded,
// or Gap.
type Payload interface {
	kind() string
}

// Text is a free-form notice, such as a shutdown announcement.
type Text struct {
	Text string `json:"text"`
}

// RecordAdded announces a newly appended record.
type RecordAdded struct {
	Record news.Record `json:"record"`
}

// Gap marks sequences [From, To] that were dropped before the client received
// them.
type Gap struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

func (Text) kind() string        { return "text" }
func (RecordAdded) kind() string { return "record" }
func (Gap) kind() string         { return "gap" }

// Message is a sequenced payload in a session's outbound queue.
type Message struct {
	Sequence uint64
	Payload  Payload
}

type envelope struct {
	Sequence uint64       `json:"sequence"`
	Type     string       `json:"type"`
	Text     *string      `json:"text,omitempty"`
	Record   *news.Record `json:"record,omitempty"`
	Gap      *Gap         `json:"gap,omitempty"`
}

// MarshalJSON encodes the message with a type discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	env := envelope{Sequence: m.Sequence}
	switch p := m.Payload.(type) {
	case Text:
		env.Type = p.kind()
		env.Text = &p.Text
	case RecordAdded:
		env.Type = p.kind()
		env.Record = &p.Record
	case Gap:
		env.Type = p.kind()
		env.Gap = &p
	default:
		return nil, fmt.Errorf("unrecognized payload %T", m.Payload)
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a message encoded by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	env := envelope{}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	m.Sequence = env.Sequence
	switch env.Type {
	case "text":
		if env.Text == nil {
			return fmt.Errorf("text message %d has no text", env.Sequence)
		}
		m.Payload = Text{Text: *env.Text}
	case "record":
		if env.Record == nil {
			return fmt.Errorf("record message %d has no record", env.Sequence)
		}
		m.Payload = RecordAdded{Record: *env.Record}
	case "gap":
		if env.Gap == nil {
			return fmt.Errorf("gap message %d has no range", env.Sequence)
		}
		m.Payload = *env.Gap
	default:
		return fmt.Errorf("unrecognized message type %q", env.Type)
	}
	return nil
}
