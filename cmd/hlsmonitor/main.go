// Command hlsmonitor watches live HLS playlists for the manifest
// pathologies described in the monitoring engine's checks and reports them
// over a REST API and outbound webhooks.
package main

import (
	"os"

	"github.com/agleyzer/hlsmonitor/cmd/hlsmonitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
