package checks

import (
	"fmt"
	"strings"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// SegmentContinuityCheck validates that, when mseq advances by diff, the
// previous window's segment at index diff (the first one still in the
// window) lines up with the new window's first segment.
type SegmentContinuityCheck struct{}

func (SegmentContinuityCheck) Name() string { return "SegmentContinuity" }

func (SegmentContinuityCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if curr.MediaSequence <= prev.MediaSequence {
		return nil
	}
	if len(curr.Segments) == 0 || len(prev.SegmentURIs) == 0 {
		return nil
	}

	diff := int(curr.MediaSequence - prev.MediaSequence)
	if diff >= len(prev.SegmentURIs) {
		return nil
	}

	expected := prev.SegmentURIs[diff]
	actual := curr.Segments[0].URI

	if normalizeURI(expected) == normalizeURI(actual) {
		return nil
	}
	// The message shows both URIs relative to the stream's base URL.
	if i := strings.LastIndex(ctx.StreamURL, "/"); i >= 0 {
		base := ctx.StreamURL[:i+1]
		expected = strings.TrimPrefix(expected, base)
		actual = strings.TrimPrefix(actual, base)
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.SegmentContinuity, ctx.MediaType, ctx.VariantKey,
		fmt.Sprintf("Faulty Segment Continuity! Expected first item-uri in mseq(%d) to be: '%s'. Got: '%s'", curr.MediaSequence, expected, actual),
		ctx.StreamURL, ctx.StreamID,
	)}
}
