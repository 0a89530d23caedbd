package checks

import (
	"fmt"
	"math"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// VariantSyncDriftCheck flags a stream whose variants have drifted more
// than threshold media-sequence numbers apart.
type VariantSyncDriftCheck struct {
	threshold uint64
}

// NewVariantSyncDriftCheck builds a VariantSyncDriftCheck allowing up to
// threshold segments of drift between the furthest-apart variants.
func NewVariantSyncDriftCheck(threshold uint64) VariantSyncDriftCheck {
	return VariantSyncDriftCheck{threshold: threshold}
}

func (VariantSyncDriftCheck) Name() string { return "VariantSyncDrift" }

func (c VariantSyncDriftCheck) Check(variants map[string]hlsstate.VariantState, ctx hlsstate.StreamCheckContext) []monitorerr.MonitorError {
	if len(variants) < 2 {
		return nil
	}

	var minKey, maxKey string
	minMseq := uint64(math.MaxUint64)
	var maxMseq uint64

	for key, state := range variants {
		if state.MediaSequence < minMseq {
			minMseq = state.MediaSequence
			minKey = key
		}
		if state.MediaSequence > maxMseq {
			maxMseq = state.MediaSequence
			maxKey = key
		}
	}

	drift := maxMseq - minMseq
	if drift <= c.threshold {
		return nil
	}
	return []monitorerr.MonitorError{monitorerr.New(
		monitorerr.VariantSyncDrift, "ALL", "ALL",
		fmt.Sprintf("Variant sync drift: '%s' at mseq(%d) is %d segments ahead of '%s' at mseq(%d)", maxKey, maxMseq, drift, minKey, minMseq),
		ctx.StreamURL, ctx.StreamID,
	)}
}
