package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// TargetDurationCheck flags any segment whose duration exceeds
// EXT-X-TARGETDURATION by more than the configured tolerance.
type TargetDurationCheck struct {
	tolerance float64
}

// NewTargetDurationCheck builds a TargetDurationCheck allowing segments up
// to tolerance seconds past the playlist's declared target duration.
func NewTargetDurationCheck(tolerance float64) TargetDurationCheck {
	return TargetDurationCheck{tolerance: tolerance}
}

func (TargetDurationCheck) Name() string { return "TargetDuration" }

func (c TargetDurationCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	limit := curr.TargetDuration + c.tolerance
	var errs []monitorerr.MonitorError
	for i, seg := range curr.Segments {
		if seg.Duration <= limit {
			continue
		}
		mseq := curr.MediaSequence + uint64(i)
		errs = append(errs, monitorerr.New(
			monitorerr.TargetDurationExceeded, ctx.MediaType, ctx.VariantKey,
			fmt.Sprintf("Segment duration %.3fs exceeds EXT-X-TARGETDURATION %gs (tolerance %.1fs) at index(%d) in mseq(%d)",
				seg.Duration, curr.TargetDuration, c.tolerance, i, mseq),
			ctx.StreamURL, ctx.StreamID,
		))
	}
	return errs
}
