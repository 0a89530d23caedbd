package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// VersionCheck flags a mid-stream EXT-X-VERSION change.
type VersionCheck struct{}

func (VersionCheck) Name() string { return "Version" }

func (VersionCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if prev.Version == nil || curr.Version == nil || *prev.Version == *curr.Version {
		return nil
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.VersionViolation, ctx.MediaType, ctx.VariantKey,
		fmt.Sprintf("EXT-X-VERSION changed from %d to %d in mseq(%d)", *prev.Version, *curr.Version, curr.MediaSequence),
		ctx.StreamURL, ctx.StreamID,
	)}
}
