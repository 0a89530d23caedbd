// Package parser turns raw playlist bytes into the typed snapshots the
// engine and check battery operate on.
//
// Master-playlist structure (the variant list) is decoded with
// github.com/grafov/m3u8, the same library the reference encoder used for
// its own playlist handling. Media-playlist detail — CUE-OUT/CUE-IN,
// EXT-X-GAP, EXT-X-DATERANGE, EXT-X-PROGRAM-DATE-TIME — is recognized by
// scanning the raw tag text rather than trusting typed library fields,
// mirroring how the original monitor implementation itself treats these as
// unrecognized tags rather than first-class parser output.
package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
)

// Target is one variant or alternative rendition discovered in a master playlist.
type Target struct {
	URL       string
	Key       string
	MediaType string
}

// ParseTop parses the top-level fetch of a stream's configured URL. If the
// body is a master playlist, isMaster is true and targets lists every
// variant/alternative to fetch next. If the body is a bare media playlist,
// isMaster is false and the poll produces no variant targets, per the
// engine's "media playlist without a master is not an error" rule.
func ParseTop(body []byte, baseURL string) (isMaster bool, targets []Target, err error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return false, nil, fmt.Errorf("decode playlist: %w", err)
	}

	if listType != m3u8.MASTER {
		return false, nil, nil
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return false, nil, fmt.Errorf("decoded MASTER listType did not yield *m3u8.MasterPlaylist")
	}

	base := baseURLOf(baseURL)

	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		key := BandwidthKey(v.Bandwidth, v.Iframe)
		targets = append(targets, Target{
			URL:       ResolveURL(base, v.URI),
			Key:       key,
			MediaType: "VIDEO",
		})
	}

	for _, alt := range scanAlternatives(body) {
		if alt.URI == "" {
			continue
		}
		targets = append(targets, Target{
			URL:       ResolveURL(base, alt.URI),
			Key:       AlternativeKey(alt.GroupID, alt.Language, alt.Name),
			MediaType: alt.Type,
		})
	}

	return true, targets, nil
}

// BandwidthKey builds the variant key for a bandwidth (EXT-X-STREAM-INF)
// variant: its bandwidth as a decimal string, prefixed iframe_ when the
// variant is an I-frame-only rendition.
func BandwidthKey(bandwidth uint32, iframe bool) string {
	if iframe {
		return "iframe_" + strconv.FormatUint(uint64(bandwidth), 10)
	}
	return strconv.FormatUint(uint64(bandwidth), 10)
}

// AlternativeKey builds the variant key for an EXT-X-MEDIA alternative:
// "{group_id};{language or name}".
func AlternativeKey(groupID, language, name string) string {
	tag := language
	if tag == "" {
		tag = name
	}
	return groupID + ";" + tag
}

type alternative struct {
	Type     string
	GroupID  string
	Language string
	Name     string
	URI      string
}

// scanAlternatives extracts EXT-X-MEDIA lines by raw attribute scanning; the
// grafov/m3u8 Variant.Alternatives association is intentionally bypassed in
// favor of a direct read of the line, since a monitor only needs the
// rendition's own identity and URI, not its grouping with a variant.
func scanAlternatives(body []byte) []alternative {
	var out []alternative
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#EXT-X-MEDIA:") {
			continue
		}
		attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
		out = append(out, alternative{
			Type:     attrs["TYPE"],
			GroupID:  attrs["GROUP-ID"],
			Language: attrs["LANGUAGE"],
			Name:     attrs["NAME"],
			URI:      attrs["URI"],
		})
	}
	return out
}

// ParseMedia parses a media playlist fetch into an immutable snapshot.
func ParseMedia(body []byte, baseURL string) (hlsstate.PlaylistSnapshot, error) {
	base := baseURLOf(baseURL)
	snap := hlsstate.PlaylistSnapshot{}

	var pendingDuration float64
	var havePendingSegment bool
	var pendingDiscontinuity, pendingGap, pendingCueOut, pendingCueIn bool
	var pendingCueOutCont *string
	var pendingPDT *time.Time
	var pendingDateRange *hlsstate.DateRangeSnapshot

	resetPending := func() {
		pendingDuration = 0
		havePendingSegment = false
		pendingDiscontinuity = false
		pendingGap = false
		pendingCueOut = false
		pendingCueIn = false
		pendingCueOutCont = nil
		pendingPDT = nil
		pendingDateRange = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			if v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:")); err == nil {
				snap.Version = &v
			}
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"), 64); err == nil {
				snap.TargetDuration = v
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			if v, err := strconv.ParseUint(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64); err == nil {
				snap.MediaSequence = v
			}
		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"):
			if v, err := strconv.ParseUint(strings.TrimPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"), 10, 64); err == nil {
				snap.DiscontinuitySequence = v
			}
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			snap.PlaylistType = strings.TrimSpace(strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:"))
		case line == "#EXT-X-DISCONTINUITY":
			pendingDiscontinuity = true
		case line == "#EXT-X-GAP":
			pendingGap = true
		case strings.HasPrefix(line, "#EXT-X-CUE-OUT-CONT"):
			val := extractTagValue(line, "#EXT-X-CUE-OUT-CONT")
			pendingCueOutCont = &val
		case strings.HasPrefix(line, "#EXT-X-CUE-OUT"):
			pendingCueOut = true
		case strings.HasPrefix(line, "#EXT-X-CUE-IN"):
			pendingCueIn = true
		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")); err == nil {
				pendingPDT = &t
			}
		case strings.HasPrefix(line, "#EXT-X-DATERANGE:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-DATERANGE:"))
			dr := &hlsstate.DateRangeSnapshot{
				ID:        attrs["ID"],
				Class:     attrs["CLASS"],
				EndOnNext: strings.EqualFold(attrs["END-ON-NEXT"], "YES"),
			}
			if v, err := time.Parse(time.RFC3339Nano, attrs["START-DATE"]); err == nil {
				dr.StartDate = v
			}
			if raw, ok := attrs["END-DATE"]; ok {
				if v, err := time.Parse(time.RFC3339Nano, raw); err == nil {
					dr.EndDate = &v
				}
			}
			if raw, ok := attrs["DURATION"]; ok {
				if v, err := strconv.ParseFloat(raw, 64); err == nil {
					dr.Duration = &v
				}
			}
			pendingDateRange = dr
		case strings.HasPrefix(line, "#EXTINF:"):
			rest := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(rest, ","); idx >= 0 {
				rest = rest[:idx]
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
				pendingDuration = v
			}
			havePendingSegment = true
		case strings.HasPrefix(line, "#"):
			// Unrecognized tag; ignored.
		default:
			if !havePendingSegment {
				continue
			}
			seg := hlsstate.SegmentSnapshot{
				URI:             ResolveURL(base, line),
				Duration:        pendingDuration,
				Discontinuity:   pendingDiscontinuity,
				CueOut:          pendingCueOut,
				CueIn:           pendingCueIn,
				CueOutCont:      pendingCueOutCont,
				Gap:             pendingGap,
				ProgramDateTime: pendingPDT,
				DateRange:       pendingDateRange,
			}
			snap.Segments = append(snap.Segments, seg)
			resetPending()
		}
	}

	for _, seg := range snap.Segments {
		if seg.CueOut {
			snap.CueOutCount++
			snap.HasCueOut = true
		}
		if seg.CueIn {
			snap.CueInCount++
			snap.HasCueIn = true
		}
		if seg.CueOutCont != nil {
			snap.HasCueOutCont = true
		}
		if seg.Gap {
			snap.HasGaps = true
		}
	}

	return snap, nil
}

// extractTagValue returns the portion of a tag line after its name, stripped
// of a leading colon, e.g. "#EXT-X-CUE-OUT-CONT:ElapsedTime=1.0" -> "ElapsedTime=1.0".
func extractTagValue(line, tagName string) string {
	rest := strings.TrimPrefix(line, tagName)
	return strings.TrimPrefix(rest, ":")
}

// parseAttributes splits a comma-separated HLS attribute list (KEY=VALUE or
// KEY="VALUE") into a map, respecting quoted commas.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	var key strings.Builder
	var val strings.Builder
	inQuotes := false
	inKey := true

	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[k] = strings.Trim(val.String(), `"`)
		}
		key.Reset()
		val.Reset()
		inKey = true
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			val.WriteRune(r)
		case r == '=' && inKey && !inQuotes:
			inKey = false
		case r == ',' && !inQuotes:
			flush()
		default:
			if inKey {
				key.WriteRune(r)
			} else {
				val.WriteRune(r)
			}
		}
	}
	flush()

	return attrs
}

// baseURLOf returns the prefix of u up to and including the final '/'.
func baseURLOf(u string) string {
	if idx := strings.LastIndex(u, "/"); idx >= 0 {
		return u[:idx+1]
	}
	return u
}

// ResolveURL resolves rel against base; an already-absolute rel is returned
// unchanged.
func ResolveURL(base, rel string) string {
	relURL, err := url.Parse(rel)
	if err != nil {
		return rel
	}
	if relURL.IsAbs() {
		return rel
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return rel
	}

	return baseURL.ResolveReference(relURL).String()
}
