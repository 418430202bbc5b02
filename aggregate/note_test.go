package aggregate_test

import (
	"errors"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
)

var errEmptyText = errors.New("note: text must not be empty")

type noteID string

func (id noteID) String() string { return string(id) }

type noteCreated struct {
	ID   noteID `json:"id"`
	Text string `json:"text"`
}

func (*noteCreated) Name() string { return "note_created" }
func (*noteCreated) InitialEvent() {}

type noteEdited struct {
	Text string `json:"text"`
}

func (*noteEdited) Name() string { return "note_edited" }

// noteArchived is not handled by note.Apply.
type noteArchived struct{}

func (*noteArchived) Name() string { return "note_archived" }

var noteCodec = event.MustNewJSONCodec(
	func() message.Message { return &noteCreated{} },
	func() message.Message { return &noteEdited{} },
)

var noteType = aggregate.Type[noteID, *note]{
	Name:    "note",
	Factory: func() *note { return &note{} },
}

type note struct {
	aggregate.BaseRoot

	id   noteID
	text string
}

func (n *note) AggregateID() noteID { return n.id }

func (n *note) Apply(msg message.Message) error {
	switch evt := msg.(type) {
	case *noteCreated:
		n.id = evt.ID
		n.text = evt.Text
	case *noteEdited:
		n.text = evt.Text
	default:
		return errors.New("note: unsupported event")
	}

	return nil
}

func createNote(streamID event.StreamID, id noteID, text string, now time.Time) (*note, error) {
	if text == "" {
		return nil, errEmptyText
	}

	n := noteType.Factory()
	if err := aggregate.Create(n, streamID, event.ToEnvelope(&noteCreated{ID: id, Text: text}, now)); err != nil {
		return nil, err
	}

	return n, nil
}

func (n *note) Edit(text string, now time.Time) error {
	if text == "" {
		return errEmptyText
	}

	return aggregate.RecordThat(n, event.ToEnvelope(&noteEdited{Text: text}, now))
}
