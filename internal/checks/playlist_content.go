package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// PlaylistContentCheck detects a positional URI swap when mseq and playlist
// size are both unchanged.
type PlaylistContentCheck struct{}

func (PlaylistContentCheck) Name() string { return "PlaylistContent" }

func (PlaylistContentCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if curr.MediaSequence != prev.MediaSequence {
		return nil
	}
	if len(prev.SegmentURIs) != len(curr.Segments) {
		return nil
	}
	if len(prev.SegmentURIs) == 0 {
		return nil
	}

	for i, prevURI := range prev.SegmentURIs {
		currURI := curr.Segments[i].URI
		if normalizeURI(prevURI) != normalizeURI(currURI) {
			return []monitorerr.MonitorError{monitorerr.New(
				monitorerr.PlaylistContent, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("Expected playlist item-uri in mseq(%d) at index(%d) to be: '%s'. Got: '%s'", curr.MediaSequence, i, prevURI, currURI),
				ctx.StreamURL, ctx.StreamID,
			)}
		}
	}
	return nil
}
