package issue

import (
	"time"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
)

// Created is the Domain Event recorded when an Issue is created.
type Created struct {
	Number      Number     `json:"number"`
	Title       string     `json:"title"`
	Due         *time.Time `json:"due,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Name implements message.Message.
func (*Created) Name() string { return "issue_created" }

// InitialEvent implements aggregate.InitialEvent.
func (*Created) InitialEvent() {}

// DueUpdated is the Domain Event recorded when the due date of an Issue changes.
type DueUpdated struct {
	Due *time.Time `json:"due,omitempty"`
}

// Name implements message.Message.
func (*DueUpdated) Name() string { return "issue_updated" }

// TitleUpdated is the Domain Event recorded when an Issue is renamed.
type TitleUpdated struct {
	Title string `json:"title"`
}

// Name implements message.Message.
func (*TitleUpdated) Name() string { return "issue_title_updated" }

// DescriptionUpdated is the Domain Event recorded when the description of an Issue changes.
type DescriptionUpdated struct {
	Description string `json:"description"`
}

// Name implements message.Message.
func (*DescriptionUpdated) Name() string { return "issue_description_updated" }

// Finished is the Domain Event recorded when an Issue is done.
type Finished struct {
	Resolution string `json:"resolution,omitempty"`
}

// Name implements message.Message.
func (*Finished) Name() string { return "issue_finished" }

// Codec encodes and decodes all the Issue Domain Events.
var Codec = event.MustNewJSONCodec(
	func() message.Message { return &Created{} },
	func() message.Message { return &DueUpdated{} },
	func() message.Message { return &TitleUpdated{} },
	func() message.Message { return &DescriptionUpdated{} },
	func() message.Message { return &Finished{} },
)
