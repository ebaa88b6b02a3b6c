package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Emit version info as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{
			"version":    versionInfo.Version,
			"commit":     versionInfo.Commit,
			"build_date": versionInfo.BuildDate,
		})
	}
	fmt.Printf("plotman %s (commit %s, built %s)\n",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	return nil
}
