package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"weft/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == "pretty" {
		fmt.Fprintln(out, version.String())
		return nil
	}
	if format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Tool      string `json:"tool"`
		Version   string `json:"version"`
		GitCommit string `json:"git_commit,omitempty"`
		BuildDate string `json:"build_date,omitempty"`
	}{"weft", version.Version, version.GitCommit, version.BuildDate})
}
