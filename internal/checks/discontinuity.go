package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// DiscontinuityCheck validates that the discontinuity sequence counter
// increments exactly when an EXT-X-DISCONTINUITY tag scrolls to the top of
// the window (case B), and not before it gets there (case C).
type DiscontinuityCheck struct{}

func (DiscontinuityCheck) Name() string { return "Discontinuity" }

func (DiscontinuityCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	if curr.MediaSequence <= prev.MediaSequence {
		return nil
	}

	mseqDiff := int(curr.MediaSequence - prev.MediaSequence)
	discOnTop := len(curr.Segments) > 0 && curr.Segments[0].Discontinuity

	if !discOnTop && prev.NextIsDiscontinuity {
		expectedDseq := prev.DiscontinuitySequence + 1
		if mseqDiff == 1 && expectedDseq != curr.DiscontinuitySequence {
			return []monitorerr.MonitorError{monitorerr.New(
				monitorerr.DiscontinuitySequence, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("Wrong count increment in mseq(%d) - Expected: %d. Got: %d", curr.MediaSequence, expectedDseq, curr.DiscontinuitySequence),
				ctx.StreamURL, ctx.StreamID,
			)}
		}
		return nil
	}

	if prev.DiscontinuitySequence == curr.DiscontinuitySequence {
		return nil
	}

	dseqDiff := int64(curr.DiscontinuitySequence) - int64(prev.DiscontinuitySequence)
	prevPlaylistSize := len(prev.PrevSegments)
	if mseqDiff >= prevPlaylistSize {
		return nil
	}

	var foundDiscCount int64
	if discOnTop {
		foundDiscCount = -1
	}
	end := mseqDiff + 1
	if end > prevPlaylistSize {
		end = prevPlaylistSize
	}
	for _, seg := range prev.PrevSegments[:end] {
		if seg.Discontinuity {
			foundDiscCount++
		}
	}

	if dseqDiff == foundDiscCount {
		return nil
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.DiscontinuitySequence, ctx.MediaType, ctx.VariantKey,
		fmt.Sprintf("Early count increment in mseq(%d) - Expected: %d. Got: %d", curr.MediaSequence, prev.DiscontinuitySequence, curr.DiscontinuitySequence),
		ctx.StreamURL, ctx.StreamID,
	)}
}
