package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// MseqGapCheck flags a media sequence jump bigger than the previous
// playlist's window, once it clears a minimum-jump threshold.
type MseqGapCheck struct {
	threshold uint64
}

// NewMseqGapCheck builds a MseqGapCheck that only fires once the jump is at
// least threshold segments.
func NewMseqGapCheck(threshold uint64) MseqGapCheck {
	return MseqGapCheck{threshold: threshold}
}

func (MseqGapCheck) Name() string { return "MseqGap" }

func (c MseqGapCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if curr.MediaSequence <= prev.MediaSequence {
		return nil
	}
	diff := curr.MediaSequence - prev.MediaSequence
	window := uint64(len(prev.SegmentURIs))

	if diff <= window || diff < c.threshold {
		return nil
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.MediaSequenceGap, ctx.MediaType, ctx.VariantKey,
		fmt.Sprintf("Media sequence jumped forward by %d (from %d to %d), exceeding playlist window of %d segments",
			diff, prev.MediaSequence, curr.MediaSequence, window),
		ctx.StreamURL, ctx.StreamID,
	)}
}
