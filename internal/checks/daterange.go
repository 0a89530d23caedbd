package checks

import (
	"fmt"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// DateRangeCheck validates the internal consistency of each segment's
// EXT-X-DATERANGE attributes: END-DATE must not precede START-DATE,
// DURATION must not be negative, and END-ON-NEXT requires a CLASS and
// forbids DURATION/END-DATE.
type DateRangeCheck struct{}

func (DateRangeCheck) Name() string { return "DateRange" }

func (DateRangeCheck) Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError {
	var errs []monitorerr.MonitorError

	for i, seg := range curr.Segments {
		dr := seg.DateRange
		if dr == nil {
			continue
		}
		mseq := curr.MediaSequence + uint64(i)

		if dr.EndDate != nil && dr.EndDate.Before(dr.StartDate) {
			errs = append(errs, monitorerr.New(
				monitorerr.DateRangeViolation, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("EXT-X-DATERANGE '%s': END-DATE %s is before START-DATE %s at index(%d) in mseq(%d)",
					dr.ID, formatDateRangeTime(*dr.EndDate), formatDateRangeTime(dr.StartDate), i, mseq),
				ctx.StreamURL, ctx.StreamID,
			))
		}

		if dr.Duration != nil && *dr.Duration < 0 {
			errs = append(errs, monitorerr.New(
				monitorerr.DateRangeViolation, ctx.MediaType, ctx.VariantKey,
				fmt.Sprintf("EXT-X-DATERANGE '%s': negative DURATION %.3fs at index(%d) in mseq(%d)",
					dr.ID, *dr.Duration, i, mseq),
				ctx.StreamURL, ctx.StreamID,
			))
		}

		if dr.EndOnNext {
			if dr.Class == "" {
				errs = append(errs, monitorerr.New(
					monitorerr.DateRangeViolation, ctx.MediaType, ctx.VariantKey,
					fmt.Sprintf("EXT-X-DATERANGE '%s': END-ON-NEXT requires CLASS attribute at index(%d) in mseq(%d)", dr.ID, i, mseq),
					ctx.StreamURL, ctx.StreamID,
				))
			}
			if dr.Duration != nil || dr.EndDate != nil {
				errs = append(errs, monitorerr.New(
					monitorerr.DateRangeViolation, ctx.MediaType, ctx.VariantKey,
					fmt.Sprintf("EXT-X-DATERANGE '%s': END-ON-NEXT must not have DURATION or END-DATE at index(%d) in mseq(%d)", dr.ID, i, mseq),
					ctx.StreamURL, ctx.StreamID,
				))
			}
		}
	}

	return errs
}

func formatDateRangeTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
