package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// PlaylistTypeCheck enforces the EXT-X-PLAYLIST-TYPE contract: EVENT never
// removes segments, VOD never changes at all.
type PlaylistTypeCheck struct{}

func (PlaylistTypeCheck) Name() string { return "PlaylistType" }

func (PlaylistTypeCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	switch curr.PlaylistType {
	case "EVENT":
		if curr.MediaSequence > prev.MediaSequence {
			return []monitorerr.MonitorError{monitorerr.New(
				monitorerr.PlaylistTypeViolation, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("EVENT playlist removed segments — mseq advanced from %d to %d", prev.MediaSequence, curr.MediaSequence),
				ctx.StreamURL, ctx.StreamID,
			)}
		}
		return nil
	case "VOD":
		mseqChanged := curr.MediaSequence != prev.MediaSequence
		segCountChanged := len(curr.Segments) != len(prev.SegmentURIs)
		if mseqChanged || segCountChanged {
			return []monitorerr.MonitorError{monitorerr.New(
				monitorerr.PlaylistTypeViolation, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("VOD playlist changed — mseq: %d -> %d, segments: %d -> %d",
					prev.MediaSequence, curr.MediaSequence, len(prev.SegmentURIs), len(curr.Segments)),
				ctx.StreamURL, ctx.StreamID,
			)}
		}
		return nil
	default:
		return nil
	}
}
