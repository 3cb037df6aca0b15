package dispatch

// Event is one item of a dispatcher response stream. Exactly one of
// the concrete types below flows through the channel at a time; View
// and Message events are terminal-ish markers while Stream events are
// contiguous token chunks.
type Event interface {
	isEvent()
}

// ViewEvent carries the assembled view and its stage representations.
// Emitted before the final message of a dataset query so consumers can
// swap the view in while the narration streams.
type ViewEvent struct {
	View  interface{}
	Reprs []string
}

// MessageEvent carries a complete assistant message. History holds the
// text recorded in the chat history, which can differ from the
// displayed Message (a docs answer is recorded before linkification);
// it is empty when the message was not recorded. Overwrite asks the
// consumer to replace the streamed text with this final rendering.
type MessageEvent struct {
	Message   string
	History   string
	Overwrite bool
}

// StreamEvent is one streamed token chunk. Chunks of a single answer
// are contiguous and exactly one of them has Last set.
type StreamEvent struct {
	Content string
	Last    bool
}

// WarningEvent surfaces a degraded outcome that did not abort the
// query.
type WarningEvent struct {
	Message string
}

func (ViewEvent) isEvent()    {}
func (MessageEvent) isEvent() {}
func (StreamEvent) isEvent()  {}
func (WarningEvent) isEvent() {}
