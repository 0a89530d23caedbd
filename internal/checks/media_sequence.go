package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// MediaSequenceCheck detects media sequence regressions: curr < prev.
type MediaSequenceCheck struct{}

func (MediaSequenceCheck) Name() string { return "MediaSequence" }

func (MediaSequenceCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if curr.MediaSequence >= prev.MediaSequence {
		return nil
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.MediaSequence, ctx.MediaType, ctx.VariantKey,
		fmt.Sprintf("Expected mediaSequence >= %d. Got: %d", prev.MediaSequence, curr.MediaSequence),
		ctx.StreamURL, ctx.StreamID,
	)}
}
