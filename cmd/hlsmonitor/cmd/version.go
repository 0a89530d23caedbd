package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags; "dev" otherwise.
var version = "dev"

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		if versionJSON {
			output, _ := json.MarshalIndent(map[string]string{"version": version}, "", "  ")
			fmt.Println(string(output))
			return
		}
		fmt.Printf("hlsmonitor %s\n", version)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
