package fixture

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
)

// Handler returns an http.Handler serving o's master playlist at
// /master.m3u8 and each variant at /variant_{n}.m3u8, mirroring the URL
// scheme Master renders links for.
func Handler(o *Origin) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		writePlaylist(w, o.Master())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		idx, ok := parseVariantPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		body, err := o.Variant(idx)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writePlaylist(w, body)
	})
	return mux
}

// NewTestServer starts o behind an httptest.Server; callers must Close it.
func NewTestServer(o *Origin) *httptest.Server {
	return httptest.NewServer(Handler(o))
}

func parseVariantPath(path string) (int, bool) {
	name := strings.TrimPrefix(path, "/")
	name = strings.TrimPrefix(name, "variant_")
	name = strings.TrimSuffix(name, ".m3u8")
	idx, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func writePlaylist(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, body)
}
