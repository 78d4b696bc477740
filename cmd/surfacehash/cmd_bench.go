package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/surfacehash"
)

var cmdBench = &cobra.Command{
	Use:   "bench [flags] INDEX",
	Short: "Measure query throughput of an index file",
	Long: `
The "bench" command issues --queries lookups spread over --workers goroutines.
Probe positions are drawn uniformly from the index's bounding box through a
seeded murmur3 hash, so most probes are misses and exercise the rejection
path as well as hits.
`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context(), args[0], benchOptions)
	},
}

// BenchOptions bundles all options for the bench command.
type BenchOptions struct {
	Queries int
	Workers int
	Seed    uint32
}

var benchOptions BenchOptions

func init() {
	cmdRoot.AddCommand(cmdBench)

	f := cmdBench.Flags()
	f.IntVar(&benchOptions.Queries, "queries", 1_000_000, "number of lookups")
	f.IntVar(&benchOptions.Workers, "workers", runtime.NumCPU(), "concurrent query goroutines")
	f.Uint32Var(&benchOptions.Seed, "seed", 0x1234, "probe hash seed")
}

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// probe fills pos with the i-th probe position inside extents.
func probe(pos []uint32, extents []uint32, i uint64, seed uint32) {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], i)
	for a := range pos {
		binary.LittleEndian.PutUint32(buf[8:], uint32(a))
		pos[a] = uint32(uint64(murmur3.Sum32WithSeed(buf[:], seed)) % (uint64(extents[a]) + 1))
	}
}

func runBench(ctx context.Context, path string, opts BenchOptions) (err error) {
	if opts.Queries <= 0 || opts.Workers <= 0 {
		return fmt.Errorf("queries and workers must be positive")
	}
	idx, err := surfacehash.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, idx.Close()) }()

	st := idx.Stats()
	baselineRSS := getMaxRSS()
	log.WithFields(log.Fields{"queries": opts.Queries, "workers": opts.Workers}).Info("benchmarking queries")

	var hits atomic.Int64
	chunk := (opts.Queries + opts.Workers - 1) / opts.Workers
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < opts.Queries; lo += chunk {
		hi := min(opts.Queries, lo+chunk)
		g.Go(func() error {
			pos := make([]uint32, st.Dims)
			var local int64
			for i := lo; i < hi; i++ {
				if i&0xFFFF == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				probe(pos, st.Extents, uint64(i), opts.Seed)
				ok, err := idx.Contains(pos)
				if err != nil {
					return err
				}
				if ok {
					local++
				}
			}
			hits.Add(local)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	avgLatency := float64(elapsed.Nanoseconds()) * float64(opts.Workers) / float64(opts.Queries) / 1000

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════╗\n")
	fmt.Printf("║ Metric              ║ Value            ║\n")
	fmt.Printf("╠═════════════════════╬══════════════════╣\n")
	fmt.Printf("║ Queries             ║ %16d ║\n", opts.Queries)
	fmt.Printf("║ Hit rate            ║ %15.2f%% ║\n", 100*float64(hits.Load())/float64(opts.Queries))
	fmt.Printf("║ Query latency       ║ %13.3f μs ║\n", avgLatency)
	fmt.Printf("║ Throughput          ║ %10.2f M/sec ║\n", float64(opts.Queries)/elapsed.Seconds()/1_000_000)
	fmt.Printf("║ Bits per sample     ║ %16.2f ║\n", st.BitsPerKey)
	fmt.Printf("║ RSS growth          ║ %13.1f MB ║\n", float64(getMaxRSS()-min(baselineRSS, getMaxRSS()))/1_000_000)
	fmt.Printf("╚═════════════════════╩══════════════════╝\n")
	return nil
}
