package entry

// EventKind distinguishes the messages on the result stream.
type EventKind uint8

const (
	// EventEntry carries one finished directory.
	EventEntry EventKind = iota
	// EventDone terminates one scan.
	EventDone
)

func (k EventKind) String() string {
	if k == EventDone {
		return "done"
	}
	return "entry"
}

// Event is a message flowing from the scan engine to its consumer.
type Event struct {
	Kind  EventKind
	Entry ScanEntry

	// Meta and Err are set on EventDone only. Err is non-nil when the root
	// could not be resolved or read; the scan produced nothing in that case.
	Meta ScanMeta
	Err  error
}

// EntryEvent wraps a ScanEntry for the result stream.
func EntryEvent(e ScanEntry) Event {
	return Event{Kind: EventEntry, Entry: e}
}

// DoneEvent builds the terminal event of a scan.
func DoneEvent(meta ScanMeta, err error) Event {
	return Event{Kind: EventDone, Meta: meta, Err: err}
}
