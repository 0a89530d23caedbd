package checks

import (
	"strings"
	"testing"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
)

func defaultTestConfig() config.MonitorConfig {
	return config.DefaultMonitorConfig()
}

func ctx() hlsstate.CheckContext {
	return hlsstate.CheckContext{
		StreamURL:  "http://example.com/",
		StreamID:   "stream_1",
		MediaType:  "VIDEO",
		VariantKey: "1200000",
	}
}

func prevState(mseq, dseq uint64, uris []string, prevSegs []hlsstate.SegmentInfo, nextIsDisc bool) hlsstate.VariantState {
	return hlsstate.VariantState{
		MediaType:             "VIDEO",
		MediaSequence:         mseq,
		SegmentURIs:           uris,
		DiscontinuitySequence: dseq,
		NextIsDiscontinuity:   nextIsDisc,
		PrevSegments:          prevSegs,
	}
}

func seg(uri string, disc bool) hlsstate.SegmentSnapshot {
	return hlsstate.SegmentSnapshot{URI: uri, Duration: 10, Discontinuity: disc}
}

func snap(mseq, dseq uint64, segs []hlsstate.SegmentSnapshot) hlsstate.PlaylistSnapshot {
	return hlsstate.PlaylistSnapshot{MediaSequence: mseq, DiscontinuitySequence: dseq, Segments: segs, TargetDuration: 10}
}

func TestMediaSequenceRegression(t *testing.T) {
	prev := prevState(10, 0, []string{"a.ts"}, nil, false)
	curr := snap(9, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false)})
	errs := MediaSequenceCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if !strings.Contains(errs[0].Details, "Expected mediaSequence >= 10. Got: 9") {
		t.Fatalf("details = %q", errs[0].Details)
	}
}

func TestMediaSequenceNoRegression(t *testing.T) {
	prev := prevState(10, 0, []string{"a.ts"}, nil, false)
	curr := snap(10, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false)})
	if errs := (MediaSequenceCheck{}).Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestPlaylistSizeShrinkage(t *testing.T) {
	prev := prevState(5, 0, []string{"a.ts", "b.ts", "c.ts"}, nil, false)
	curr := snap(5, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false), seg("b.ts", false)})
	errs := PlaylistSizeCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "Expected playlist size in mseq(5) to be: 3. Got: 2") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestPlaylistContentSwap(t *testing.T) {
	prev := prevState(5, 0, []string{"a.ts", "b.ts"}, nil, false)
	curr := snap(5, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false), seg("x.ts", false)})
	errs := PlaylistContentCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "at index(1) to be: 'b.ts'. Got: 'x.ts'") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestPlaylistContentIgnoresQueryString(t *testing.T) {
	prev := prevState(5, 0, []string{"a.ts?token=1"}, nil, false)
	curr := snap(5, 0, []hlsstate.SegmentSnapshot{seg("a.ts?token=2", false)})
	if errs := (PlaylistContentCheck{}).Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none (query strings ignored)", errs)
	}
}

func TestSegmentContinuityMismatch(t *testing.T) {
	prev := prevState(5, 0, []string{"a.ts", "b.ts", "c.ts"}, nil, false)
	curr := snap(6, 0, []hlsstate.SegmentSnapshot{seg("x.ts", false)})
	errs := SegmentContinuityCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "Expected first item-uri in mseq(6) to be: 'b.ts'. Got: 'x.ts'") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestSegmentContinuitySkipsOnBigJump(t *testing.T) {
	prev := prevState(5, 0, []string{"a.ts", "b.ts"}, nil, false)
	curr := snap(50, 0, []hlsstate.SegmentSnapshot{seg("z.ts", false)})
	if errs := (SegmentContinuityCheck{}).Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestDiscontinuityWrongCountIncrement(t *testing.T) {
	prev := prevState(2, 10, []string{"other_0_1.ts", "other_0_2.ts"}, []hlsstate.SegmentInfo{
		{URI: "other_0_1.ts", Discontinuity: true},
		{URI: "other_0_2.ts", Discontinuity: false},
	}, true)
	curr := snap(3, 12, []hlsstate.SegmentSnapshot{seg("other_0_2.ts", false), seg("other_0_3.ts", false)})
	errs := DiscontinuityCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if !strings.Contains(errs[0].Details, "Wrong count increment in mseq(3)") ||
		!strings.Contains(errs[0].Details, "Expected: 11") ||
		!strings.Contains(errs[0].Details, "Got: 12") {
		t.Fatalf("details = %q", errs[0].Details)
	}
}

func TestDiscontinuityEarlyIncrementAtTop(t *testing.T) {
	prev := prevState(21, 10, []string{"index_0_1.ts", "other_0_1.ts"}, []hlsstate.SegmentInfo{
		{URI: "index_0_1.ts", Discontinuity: false},
		{URI: "other_0_1.ts", Discontinuity: true},
	}, false)
	curr := snap(22, 11, []hlsstate.SegmentSnapshot{seg("other_0_1.ts", true), seg("other_0_2.ts", false)})
	errs := DiscontinuityCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "Early count increment in mseq(22)") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestDiscontinuityLargeJumpSkipsValidation(t *testing.T) {
	prev := prevState(20, 10, []string{"a.ts", "b.ts", "c.ts"}, []hlsstate.SegmentInfo{
		{URI: "a.ts"}, {URI: "b.ts", Discontinuity: true}, {URI: "c.ts"},
	}, false)
	curr := snap(123, 12, []hlsstate.SegmentSnapshot{seg("x.ts", true), seg("y.ts", false)})
	if errs := (DiscontinuityCheck{}).Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestScte35CueOutDisappearedWithoutCueIn(t *testing.T) {
	prev := prevState(10, 0, []string{"a.ts"}, nil, false)
	prev.InCueOut = true
	curr := snap(11, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false)})
	errs := Scte35Check{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "disappeared without CUE-IN") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestScte35CueInWithoutPrecedingCueOut(t *testing.T) {
	prev := prevState(10, 0, []string{"a.ts"}, nil, false)
	curr := snap(11, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, CueIn: true}})
	errs := Scte35Check{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "CUE-IN found without preceding CUE-OUT") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestScte35NormalCueOutContIsSilent(t *testing.T) {
	prev := prevState(10, 0, []string{"a.ts"}, nil, false)
	prev.InCueOut = true
	cont := "20.0/60.0"
	curr := snap(11, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, CueOutCont: &cont}})
	if errs := (Scte35Check{}).Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestTargetDurationExceeded(t *testing.T) {
	check := NewTargetDurationCheck(0.5)
	prev := prevState(0, 0, nil, nil, false)
	curr := hlsstate.PlaylistSnapshot{MediaSequence: 1, TargetDuration: 6, Segments: []hlsstate.SegmentSnapshot{seg("a.ts", false)}}
	curr.Segments[0].Duration = 7
	errs := check.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "exceeds EXT-X-TARGETDURATION 6s") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestTargetDurationWithinTolerance(t *testing.T) {
	check := NewTargetDurationCheck(0.5)
	prev := prevState(0, 0, nil, nil, false)
	curr := hlsstate.PlaylistSnapshot{MediaSequence: 1, TargetDuration: 6, Segments: []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 6.3}}}
	if errs := check.Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestGapCheckFlagsGapSegments(t *testing.T) {
	prev := prevState(0, 0, nil, nil, false)
	curr := snap(5, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, Gap: true}})
	errs := GapCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "EXT-X-GAP at index(0) in mseq(5)") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestMseqGapAboveThreshold(t *testing.T) {
	check := NewMseqGapCheck(5)
	prev := prevState(1, 0, []string{"a.ts", "b.ts"}, nil, false)
	curr := snap(10, 0, []hlsstate.SegmentSnapshot{seg("x.ts", false)})
	errs := check.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "jumped forward by 9") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestMseqGapBelowThreshold(t *testing.T) {
	check := NewMseqGapCheck(5)
	prev := prevState(1, 0, []string{"a.ts", "b.ts"}, nil, false)
	curr := snap(3, 0, []hlsstate.SegmentSnapshot{seg("x.ts", false)})
	if errs := check.Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestPlaylistTypeEventRemovedSegments(t *testing.T) {
	prev := prevState(1, 0, []string{"a.ts"}, nil, false)
	curr := snap(2, 0, []hlsstate.SegmentSnapshot{seg("b.ts", false)})
	curr.PlaylistType = "EVENT"
	errs := PlaylistTypeCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "mseq advanced from 1 to 2") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestPlaylistTypeVodChanged(t *testing.T) {
	prev := prevState(1, 0, []string{"a.ts"}, nil, false)
	curr := snap(1, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false), seg("b.ts", false)})
	curr.PlaylistType = "VOD"
	errs := PlaylistTypeCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "segments: 1 -> 2") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestSegmentDurationAnomaly(t *testing.T) {
	check := NewSegmentDurationAnomalyCheck(0.5)
	prev := prevState(0, 0, nil, nil, false)
	curr := hlsstate.PlaylistSnapshot{
		MediaSequence:  1,
		TargetDuration: 10,
		Segments: []hlsstate.SegmentSnapshot{
			{URI: "a.ts", Duration: 2},
			{URI: "b.ts", Duration: 10},
		},
	}
	errs := check.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "Abnormally short segment 2.000s") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestSegmentDurationAnomalyIgnoresLastSegment(t *testing.T) {
	check := NewSegmentDurationAnomalyCheck(0.5)
	prev := prevState(0, 0, nil, nil, false)
	curr := hlsstate.PlaylistSnapshot{
		MediaSequence:  1,
		TargetDuration: 10,
		Segments: []hlsstate.SegmentSnapshot{
			{URI: "a.ts", Duration: 10},
			{URI: "b.ts", Duration: 2},
		},
	}
	if errs := check.Check(prev, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none (last segment exempt)", errs)
	}
}

func TestVersionChanged(t *testing.T) {
	v1, v2 := 3, 4
	prev := prevState(0, 0, nil, nil, false)
	prev.Version = &v1
	curr := snap(1, 0, []hlsstate.SegmentSnapshot{seg("a.ts", false)})
	curr.Version = &v2
	errs := VersionCheck{}.Check(prev, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "changed from 3 to 4") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestProgramDateTimeJump(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := base
	t2 := base.Add(20 * time.Second)
	curr := hlsstate.PlaylistSnapshot{
		MediaSequence: 10,
		Segments: []hlsstate.SegmentSnapshot{
			{URI: "a.ts", Duration: 10, ProgramDateTime: &t1},
			{URI: "b.ts", Duration: 10, ProgramDateTime: &t2},
		},
	}
	errs := ProgramDateTimeCheck{}.Check(hlsstate.VariantState{}, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "PDT discontinuity at index(1) in mseq(11)") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestProgramDateTimeSkipsAcrossDiscontinuity(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := base
	t2 := base.Add(time.Hour)
	curr := hlsstate.PlaylistSnapshot{
		MediaSequence: 10,
		Segments: []hlsstate.SegmentSnapshot{
			{URI: "a.ts", Duration: 10, ProgramDateTime: &t1},
			{URI: "b.ts", Duration: 10, ProgramDateTime: &t2, Discontinuity: true},
		},
	}
	if errs := (ProgramDateTimeCheck{}).Check(hlsstate.VariantState{}, curr, ctx()); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none across discontinuity", errs)
	}
}

func TestDateRangeEndBeforeStart(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-10 * time.Second)
	dr := &hlsstate.DateRangeSnapshot{ID: "ad-1", StartDate: start, EndDate: &end}
	curr := snap(100, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, DateRange: dr}})
	errs := DateRangeCheck{}.Check(hlsstate.VariantState{}, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "before START-DATE") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestDateRangeNegativeDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dur := -5.0
	dr := &hlsstate.DateRangeSnapshot{ID: "ad-2", StartDate: start, Duration: &dur}
	curr := snap(100, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, DateRange: dr}})
	errs := DateRangeCheck{}.Check(hlsstate.VariantState{}, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "negative DURATION -5.000s") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestDateRangeEndOnNextRequiresClass(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dr := &hlsstate.DateRangeSnapshot{ID: "ad-3", StartDate: start, EndOnNext: true}
	curr := snap(100, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, DateRange: dr}})
	errs := DateRangeCheck{}.Check(hlsstate.VariantState{}, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "END-ON-NEXT requires CLASS") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestDateRangeEndOnNextForbidsDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dur := 30.0
	dr := &hlsstate.DateRangeSnapshot{ID: "ad-4", Class: "ads", StartDate: start, Duration: &dur, EndOnNext: true}
	curr := snap(100, 0, []hlsstate.SegmentSnapshot{{URI: "a.ts", Duration: 10, DateRange: dr}})
	errs := DateRangeCheck{}.Check(hlsstate.VariantState{}, curr, ctx())
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "must not have DURATION or END-DATE") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestStaleManifestExceedsLimit(t *testing.T) {
	err := CheckStale(7*time.Second, 6*time.Second, "http://example.com/", "stream_1")
	if err == nil || !strings.Contains(err.Details, "Expected: 6000ms. Got: 7000ms") {
		t.Fatalf("err = %+v", err)
	}
}

func TestStaleManifestWithinLimit(t *testing.T) {
	if err := CheckStale(5*time.Second, 6*time.Second, "http://example.com/", "stream_1"); err != nil {
		t.Fatalf("err = %+v, want nil", err)
	}
}

func TestVariantSyncDriftAboveThreshold(t *testing.T) {
	check := NewVariantSyncDriftCheck(3)
	variants := map[string]hlsstate.VariantState{
		"1000000": {MediaSequence: 10},
		"2000000": {MediaSequence: 20},
	}
	sctx := hlsstate.StreamCheckContext{StreamURL: "http://example.com/", StreamID: "s1"}
	errs := check.Check(variants, sctx)
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "is 10 segments ahead of") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestVariantSyncDriftWithinThreshold(t *testing.T) {
	check := NewVariantSyncDriftCheck(3)
	variants := map[string]hlsstate.VariantState{
		"1000000": {MediaSequence: 10},
		"2000000": {MediaSequence: 11},
	}
	sctx := hlsstate.StreamCheckContext{StreamURL: "http://example.com/", StreamID: "s1"}
	if errs := check.Check(variants, sctx); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestVariantAvailabilityFlagsFailingVariant(t *testing.T) {
	check := NewVariantAvailabilityCheck(3)
	sctx := hlsstate.StreamCheckContext{
		StreamURL:       "http://example.com/",
		StreamID:        "s1",
		VariantFailures: map[string]uint32{"1000000": 0, "2000000": 3},
	}
	errs := check.Check(nil, sctx)
	if len(errs) != 1 || !strings.Contains(errs[0].Details, "Variant '2000000' unavailable for 3 consecutive polls") {
		t.Fatalf("errs = %+v", errs)
	}
}

func TestVariantAvailabilitySuppressesWhenAllFailing(t *testing.T) {
	check := NewVariantAvailabilityCheck(3)
	sctx := hlsstate.StreamCheckContext{
		StreamURL:       "http://example.com/",
		StreamID:        "s1",
		VariantFailures: map[string]uint32{"1000000": 3, "2000000": 4},
	}
	if errs := check.Check(nil, sctx); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none (origin-wide outage suppressed)", errs)
	}
}

func TestVariantAvailabilitySuppressesWhenAllHealthy(t *testing.T) {
	check := NewVariantAvailabilityCheck(3)
	sctx := hlsstate.StreamCheckContext{
		StreamURL:       "http://example.com/",
		StreamID:        "s1",
		VariantFailures: map[string]uint32{"1000000": 0, "2000000": 0},
	}
	if errs := check.Check(nil, sctx); len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
}

func TestDefaultChecksOrderingRespectsToggles(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Scte35Enabled = true
	cfg.ProgramDateTimeEnabled = true
	cfg.DateRangeEnabled = true
	list := DefaultChecks(cfg)

	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name()
	}
	want := []string{
		"MediaSequence", "PlaylistSize", "PlaylistContent", "SegmentContinuity", "Discontinuity",
		"SCTE35", "TargetDuration", "Gap", "MseqGap", "PlaylistType", "SegmentDurationAnomaly", "Version",
		"ProgramDateTime", "DateRange",
	}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestDefaultChecksOmitsDisabledToggles(t *testing.T) {
	cfg := defaultTestConfig()
	list := DefaultChecks(cfg)
	for _, c := range list {
		if c.Name() == "SCTE35" || c.Name() == "ProgramDateTime" || c.Name() == "DateRange" {
			t.Fatalf("%s present despite disabled toggle", c.Name())
		}
	}
}
