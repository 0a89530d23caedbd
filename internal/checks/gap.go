package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// GapCheck flags every segment tagged EXT-X-GAP.
type GapCheck struct{}

func (GapCheck) Name() string { return "Gap" }

func (GapCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	var errs []monitorerr.MonitorError
	for i, seg := range curr.Segments {
		if !seg.Gap {
			continue
		}
		mseq := curr.MediaSequence + uint64(i)
		errs = append(errs, monitorerr.New(
			monitorerr.GapDetected, ctx.MediaType, ctx.VariantKey,
			fmt.Sprintf("EXT-X-GAP at index(%d) in mseq(%d) — segment: '%s'", i, mseq, seg.URI),
			ctx.StreamURL, ctx.StreamID,
		))
	}
	return errs
}
