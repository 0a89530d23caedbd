package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// SegmentDurationAnomalyCheck flags a non-final segment whose duration falls
// below ratio * target_duration.
type SegmentDurationAnomalyCheck struct {
	ratio float64
}

// NewSegmentDurationAnomalyCheck builds a SegmentDurationAnomalyCheck using
// the given ratio of target_duration as its floor.
func NewSegmentDurationAnomalyCheck(ratio float64) SegmentDurationAnomalyCheck {
	return SegmentDurationAnomalyCheck{ratio: ratio}
}

func (SegmentDurationAnomalyCheck) Name() string { return "SegmentDurationAnomaly" }

func (c SegmentDurationAnomalyCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if len(curr.Segments) < 2 {
		return nil
	}

	threshold := curr.TargetDuration * c.ratio
	var errs []monitorerr.MonitorError
	for i, seg := range curr.Segments[:len(curr.Segments)-1] {
		if seg.Duration >= threshold {
			continue
		}
		mseq := curr.MediaSequence + uint64(i)
		errs = append(errs, monitorerr.New(
			monitorerr.SegmentDurationAnomaly, ctx.MediaType, ctx.VariantKey,
			fmt.Sprintf("Abnormally short segment %.3fs (target: %gs, threshold: %.1fs) at index(%d) in mseq(%d)",
				seg.Duration, curr.TargetDuration, threshold, i, mseq),
			ctx.StreamURL, ctx.StreamID,
		))
	}
	return errs
}
