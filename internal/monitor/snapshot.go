package monitor

import (
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

// Snapshot is a consistent view of the dashboard state. Snapshots are
// immutable once published; Events is shared and must not be modified.
type Snapshot struct {
	Events     []event.Record        // ingested, newest first
	Stats      pipeline.Stats        // over Events, ignoring any filter
	Cleanup    *client.CleanupStatus // nil until first fetched
	CleanupErr string                // last cleanup status error, empty when current
	Online     bool                  // last events fetch succeeded
	LastUpdate time.Time             // time of the last successful events fetch
	Seq        uint64                // sequence number of the applied refresh
	Restored   bool                  // Events came from the snapshot cache
}

// View returns the events passing f, in snapshot order.
func (s Snapshot) View(f pipeline.Filter) []event.Record {
	return f.Apply(s.Events)
}

// CleanupAvailable reports whether a current cleanup status is known.
func (s Snapshot) CleanupAvailable() bool {
	return s.Cleanup != nil && s.CleanupErr == ""
}
