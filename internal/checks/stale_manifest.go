package checks

import (
	"fmt"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// CheckStale reports a StaleManifest error when timeSinceChange exceeds
// limit. Unlike the other checks it isn't run against a VariantState/
// PlaylistSnapshot pair — it's invoked directly by the engine once per
// stream per poll, since staleness is a stream-level property, not a
// per-variant one.
func CheckStale(timeSinceChange, limit time.Duration, streamURL, streamID string) *monitorerr.MonitorError {
	if timeSinceChange <= limit {
		return nil
	}
	err := monitorerr.New(
		monitorerr.StaleManifest, "ALL", "ALL",
		fmt.Sprintf("Expected: %dms. Got: %dms", limit.Milliseconds(), timeSinceChange.Milliseconds()),
		streamURL, streamID,
	)
	return &err
}
