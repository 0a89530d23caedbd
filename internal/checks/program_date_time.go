package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// ProgramDateTimeCheck validates that consecutive EXT-X-PROGRAM-DATE-TIME
// timestamps advance by the preceding segment's duration, within a 1s
// tolerance, across any pair of segments not separated by a discontinuity.
type ProgramDateTimeCheck struct{}

func (ProgramDateTimeCheck) Name() string { return "ProgramDateTime" }

func (ProgramDateTimeCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	var errs []monitorerr.MonitorError
	for idx := 0; idx+1 < len(curr.Segments); idx++ {
		prevSeg := curr.Segments[idx]
		nextSeg := curr.Segments[idx+1]
		segIdx := idx + 1

		if nextSeg.Discontinuity {
			continue
		}
		if prevSeg.ProgramDateTime == nil || nextSeg.ProgramDateTime == nil {
			continue
		}

		expectedMs := int64(prevSeg.Duration * 1000.0)
		actualMs := nextSeg.ProgramDateTime.Sub(*prevSeg.ProgramDateTime).Milliseconds()
		drift := actualMs - expectedMs
		if drift < 0 {
			drift = -drift
		}

		if drift > 1000 {
			mseq := curr.MediaSequence + uint64(segIdx)
			errs = append(errs, monitorerr.New(
				monitorerr.ProgramDateTimeJump, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("PDT discontinuity at index(%d) in mseq(%d): expected +%dms, actual diff %dms (drift %dms)",
					segIdx, mseq, expectedMs, actualMs, drift),
				ctx.StreamURL, ctx.StreamID,
			))
		}
	}
	return errs
}
