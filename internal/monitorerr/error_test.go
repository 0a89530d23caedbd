package monitorerr

import "testing"

func TestRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewRing(3)
	for _, d := range []string{"e0", "e1", "e2", "e3", "e4"} {
		r.Push(New(MediaSequence, "VIDEO", "1212000", d, "https://mock/master.m3u8", "stream-1"))
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	chron := r.ListChronological()
	if len(chron) != 3 {
		t.Fatalf("ListChronological() returned %d entries, want 3", len(chron))
	}
	if chron[0].Details != "e2" || chron[2].Details != "e4" {
		t.Fatalf("ListChronological() = %+v, want e2..e4 after evicting the two oldest", chron)
	}
}

func TestRingListIsNewestFirst(t *testing.T) {
	r := NewRing(10)
	first := New(MediaSequence, "VIDEO", "v1", "first", "u", "s")
	second := New(PlaylistSize, "VIDEO", "v1", "second", "u", "s")
	r.Push(first)
	r.Push(second)

	list := r.List()
	if list[0].Details != "second" || list[1].Details != "first" {
		t.Fatalf("List() order = %+v, want newest-first", list)
	}

	chron := r.ListChronological()
	if chron[0].Details != "first" || chron[1].Details != "second" {
		t.Fatalf("ListChronological() order = %+v, want oldest-first", chron)
	}
}

func TestRingClearIsIdempotent(t *testing.T) {
	r := NewRing(2)
	r.Push(New(GapDetected, "VIDEO", "v1", "gap", "u", "s"))
	r.Clear()
	r.Clear()

	if !r.IsEmpty() || r.Len() != 0 {
		t.Fatalf("ring not empty after Clear(): len=%d", r.Len())
	}
}

func TestRingNeverExceedsCapacity(t *testing.T) {
	r := NewRing(5)
	for i := 0; i < 50; i++ {
		r.Push(New(StaleManifest, "VIDEO", "v1", "stale", "u", "s"))
		if r.Len() > 5 {
			t.Fatalf("ring grew past capacity: len=%d", r.Len())
		}
	}
}

func TestWithStatusCode(t *testing.T) {
	e := New(ManifestRetrieval, "VIDEO", "", "fetch failed", "u", "s").WithStatusCode(503)
	if e.StatusCode == nil || *e.StatusCode != 503 {
		t.Fatalf("StatusCode = %v, want 503", e.StatusCode)
	}
}
