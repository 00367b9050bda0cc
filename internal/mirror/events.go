package mirror

import "time"

// EventKind classifies a mirror progress event.
type EventKind string

const (
	// EventSyncStarted fires when a sync begins. Change holds the newest
	// changelist already copied.
	EventSyncStarted EventKind = "sync_started"

	// EventChangeCopied fires per mirrored changelist, carrying the
	// changelist number and the commit it became.
	EventChangeCopied EventKind = "change_copied"

	// EventSyncComplete fires after a clean run. Copied counts the
	// changelists mirrored; Change is the newest one.
	EventSyncComplete EventKind = "sync_complete"

	// EventSyncError fires when a run fails.
	EventSyncError EventKind = "sync_error"
)

// Event is one progress notification from a mirror run.
type Event struct {
	Kind   EventKind `json:"kind"`
	Change int64     `json:"change,omitempty"`
	SHA1   string    `json:"sha1,omitempty"`
	Copied int       `json:"copied,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// emit sends an event without blocking. Slow consumers lose events rather
// than stalling the sync.
func (m *Mirror) emit(ev Event) {
	if m.events == nil {
		return
	}
	ev.Time = time.Now()
	select {
	case m.events <- ev:
	default:
	}
}
