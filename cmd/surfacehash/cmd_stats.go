package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/tamirms/surfacehash"
)

var cmdStats = &cobra.Command{
	Use:   "stats [flags] INDEX",
	Short: "Print statistics for an index file",
	Long: `
The "stats" command prints table occupancy, redirect usage and size figures
for an index file, as a table or as JSON with --json.
`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := surfacehash.GetStats(args[0])
		if err != nil {
			return err
		}
		if statsOptions.JSON {
			buf, err := sonnet.Marshal(st)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(buf))
			return err
		}
		printStats(os.Stdout, st)
		return nil
	},
}

// StatsOptions bundles all options for the stats command.
type StatsOptions struct {
	JSON bool
}

var statsOptions StatsOptions

func init() {
	cmdRoot.AddCommand(cmdStats)

	f := cmdStats.Flags()
	f.BoolVar(&statsOptions.JSON, "json", false, "print statistics as JSON")
}

func printStats(w io.Writer, st *surfacehash.Stats) {
	fmt.Fprintf(w, "╔═════════════════════╦══════════════════╗\n")
	fmt.Fprintf(w, "║ Metric              ║ Value            ║\n")
	fmt.Fprintf(w, "╠═════════════════════╬══════════════════╣\n")
	fmt.Fprintf(w, "║ Samples             ║ %16d ║\n", st.NumSamples)
	fmt.Fprintf(w, "║ Box extents         ║ %16v ║\n", st.Extents)
	fmt.Fprintf(w, "║ Box offset          ║ %16d ║\n", st.Offset)
	fmt.Fprintf(w, "║ Attempts            ║ %16d ║\n", st.Attempts)
	fmt.Fprintf(w, "║ Table size          ║ %16d ║\n", st.TableSize)
	fmt.Fprintf(w, "║ Load factor         ║ %16.3f ║\n", st.LoadFactor)
	fmt.Fprintf(w, "║ Redirected          ║ %16d ║\n", st.Redirected)
	fmt.Fprintf(w, "║ Buckets             ║ %16d ║\n", st.Buckets)
	fmt.Fprintf(w, "║ Largest bucket      ║ %16d ║\n", st.MaxBucket)
	fmt.Fprintf(w, "║ Redirect slots      ║ %16d ║\n", st.RedirectSlots)
	fmt.Fprintf(w, "║ Normals             ║ %16d ║\n", st.NumNormals)
	fmt.Fprintf(w, "║ Payload bytes       ║ %16d ║\n", st.PayloadSize)
	fmt.Fprintf(w, "║ Index size          ║ %16d ║\n", st.IndexSize)
	fmt.Fprintf(w, "║ Bits per sample     ║ %16.2f ║\n", st.BitsPerKey)
	fmt.Fprintf(w, "╚═════════════════════╩══════════════════╝\n")
}
