package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// PlaylistSizeCheck detects playlist shrinkage while the media sequence is
// unchanged.
type PlaylistSizeCheck struct{}

func (PlaylistSizeCheck) Name() string { return "PlaylistSize" }

func (PlaylistSizeCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if curr.MediaSequence != prev.MediaSequence {
		return nil
	}
	if len(prev.SegmentURIs) == 0 {
		return nil
	}
	if len(prev.SegmentURIs) <= len(curr.Segments) {
		return nil
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.PlaylistSize, ctx.MediaType, ctx.VariantKey,
		fmt.Sprintf("Expected playlist size in mseq(%d) to be: %d. Got: %d", curr.MediaSequence, len(prev.SegmentURIs), len(curr.Segments)),
		ctx.StreamURL, ctx.StreamID,
	)}
}
