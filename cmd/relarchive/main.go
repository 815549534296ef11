// Command relarchive writes a row and everything it references, followed
// through foreign keys, as one nested JSON or YAML document.
//
//	relarchive run --config archive.yaml --schema shop --table orders --where "id = ?" --param 1
//	relarchive serve --config archive.yaml --addr :8080
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relarchive",
		Short: "Archive relational rows as nested documents",
		Long: `relarchive selects rows from MySQL or PostgreSQL and replaces every foreign-key
value with the row it references, recursively, producing one self-contained
document per archived row.`,
		SilenceUsage: true,
	}

	addSettingsFlags(rootCmd)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}
