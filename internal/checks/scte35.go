package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// Scte35Check validates CUE-OUT/CUE-IN/CUE-OUT-CONT marker consistency
// across a poll boundary.
type Scte35Check struct{}

func (Scte35Check) Name() string { return "SCTE35" }

func (Scte35Check) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	var hasCueOut, hasCueIn, hasCueOutCont bool
	for _, seg := range curr.Segments {
		if seg.CueOut {
			hasCueOut = true
		}
		if seg.CueIn {
			hasCueIn = true
		}
		if seg.CueOutCont != nil {
			hasCueOutCont = true
		}
	}

	var errs []monitorerr.MonitorError

	if prev.InCueOut && !hasCueOut && !hasCueIn && !hasCueOutCont && curr.MediaSequence > prev.MediaSequence {
		errs = append(errs, monitorerr.New(
			monitorerr.Scte35Violation, ctx.MediaType, ctx.VariantKey,
			fmt.Sprintf("CUE-OUT markers disappeared without CUE-IN in mseq(%d)", curr.MediaSequence),
			ctx.StreamURL, ctx.StreamID,
		))
	}

	if hasCueIn && !prev.InCueOut && !hasCueOut {
		errs = append(errs, monitorerr.New(
			monitorerr.Scte35Violation, ctx.MediaType, ctx.VariantKey,
			fmt.Sprintf("CUE-IN found without preceding CUE-OUT state in mseq(%d)", curr.MediaSequence),
			ctx.StreamURL, ctx.StreamID,
		))
	}

	if hasCueOutCont && !prev.InCueOut && !hasCueOut {
		errs = append(errs, monitorerr.New(
			monitorerr.Scte35Violation, ctx.MediaType, ctx.VariantKey,
			fmt.Sprintf("CUE-OUT-CONT found without active CUE-OUT in mseq(%d)", curr.MediaSequence),
			ctx.StreamURL, ctx.StreamID,
		))
	}

	return errs
}
