// Command surfacehash builds, inspects and benchmarks surface hash index
// files.
//
// Usage:
//
//	surfacehash build --radius 64 --density 0.5 --payload 4 --out shell.idx
//	surfacehash query --index shell.idx 64,0,64 10,10,10
//	surfacehash verify shell.idx
//	surfacehash stats --json shell.idx
//	surfacehash bench --queries 1000000 --workers 8 shell.idx
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// GlobalOptions hold options shared by every command.
type GlobalOptions struct {
	Verbose bool
}

var globalOptions GlobalOptions

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:     "surfacehash",
	Short:   "Build and query surface hash index files",
	Version: version,
	Long: `
surfacehash stores oriented surface samples (lattice points with an outward
normal) in a minimal perfect spatial hash sized to the bounding box surface,
and persists the result as a memory-mappable index file.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if globalOptions.Verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
		os.Exit(0)
	},
}

func init() {
	f := cmdRoot.PersistentFlags()
	f.BoolVarP(&globalOptions.Verbose, "verbose", "v", false, "log construction attempts")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmdRoot.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
