package checks

import (
	"fmt"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// VariantAvailabilityCheck flags a variant with failureThreshold or more
// consecutive fetch failures, but suppresses the alarm when every variant
// is failing (an origin-wide outage, not a single bad variant) or when none
// are.
type VariantAvailabilityCheck struct {
	failureThreshold uint32
}

// NewVariantAvailabilityCheck builds a VariantAvailabilityCheck that flags a
// variant once it has accumulated failureThreshold consecutive failures.
func NewVariantAvailabilityCheck(failureThreshold uint32) VariantAvailabilityCheck {
	return VariantAvailabilityCheck{failureThreshold: failureThreshold}
}

func (VariantAvailabilityCheck) Name() string { return "VariantAvailability" }

func (c VariantAvailabilityCheck) Check(_ map[string]hlsstate.VariantState, ctx hlsstate.StreamCheckContext) []monitorerr.MonitorError {
	hasHealthy := false
	for _, count := range ctx.VariantFailures {
		if count == 0 {
			hasHealthy = true
			break
		}
	}

	allZeroOrMissing := len(ctx.VariantFailures) == 0
	if !allZeroOrMissing {
		allZeroOrMissing = true
		for _, count := range ctx.VariantFailures {
			if count != 0 {
				allZeroOrMissing = false
				break
			}
		}
	}
	if allZeroOrMissing {
		return nil
	}

	allFailing := len(ctx.VariantFailures) > 0
	for _, count := range ctx.VariantFailures {
		if count < c.failureThreshold {
			allFailing = false
			break
		}
	}
	if allFailing {
		return nil
	}

	if !hasHealthy {
		return nil
	}

	var errs []monitorerr.MonitorError
	for variantKey, failures := range ctx.VariantFailures {
		if failures < c.failureThreshold {
			continue
		}
		errs = append(errs, monitorerr.New(
			monitorerr.VariantUnavailable, "ALL", variantKey,
			fmt.Sprintf("Variant '%s' unavailable for %d consecutive polls while other variants are active", variantKey, failures),
			ctx.StreamURL, ctx.StreamID,
		))
	}
	return errs
}
