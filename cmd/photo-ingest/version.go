package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"photo-ingest/internal/startup"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := startup.GetBuildInfo()
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(out, "photo-ingest %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildTime)
		fmt.Fprintf(out, "%s %s/%s\n", info.GoVersion, info.OS, info.Arch)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build information as JSON")
}
