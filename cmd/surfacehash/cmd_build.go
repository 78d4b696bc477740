package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamirms/surfacehash"
)

var cmdBuild = &cobra.Command{
	Use:   "build",
	Short: "Build an index file from samples",
	Long: `
The "build" command builds an index from a sample file (--input) or from a
generated sphere shell, and writes it to --out. Each sample's value is stored
in the low --payload bytes of its slot.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context(), buildOptions)
	},
}

// BuildOptions bundles all options for the build command.
type BuildOptions struct {
	Out         string
	Input       string
	Radius      uint32
	Density     float64
	Seed        uint32
	Payload     int
	MaxAttempts int
	Metadata    string
	Validate    bool
}

var buildOptions BuildOptions

func init() {
	cmdRoot.AddCommand(cmdBuild)

	f := cmdBuild.Flags()
	f.StringVar(&buildOptions.Out, "out", "surface.idx", "index file to write")
	f.StringVar(&buildOptions.Input, "input", "", "sample file, one `x y z nx ny nz [value]` per line")
	f.Uint32Var(&buildOptions.Radius, "radius", 32, "generated sphere radius")
	f.Float64Var(&buildOptions.Density, "density", 1, "fraction of shell points kept")
	f.Uint32Var(&buildOptions.Seed, "seed", 0x1234, "thinning hash seed")
	f.IntVar(&buildOptions.Payload, "payload", 4, "payload bytes per slot (0-8)")
	f.IntVar(&buildOptions.MaxAttempts, "max-attempts", 32, "construction attempts before giving up")
	f.StringVar(&buildOptions.Metadata, "metadata", "", "user metadata stored in the index")
	f.BoolVar(&buildOptions.Validate, "validate", false, "check every sample resolves before writing")
}

func runBuild(ctx context.Context, opts BuildOptions) error {
	var samples []surfacehash.Sample[uint64]
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return err
		}
		samples, err = readSamples(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", opts.Input, err)
		}
	} else {
		samples = sphereShell(opts.Radius, opts.Density, opts.Seed)
	}
	log.WithField("samples", len(samples)).Info("building map")

	start := time.Now()
	m, err := surfacehash.BuildSlice(ctx, samples,
		surfacehash.WithLogger(log.StandardLogger()),
		surfacehash.WithMaxAttempts(opts.MaxAttempts),
	)
	if err != nil {
		return err
	}
	buildDuration := time.Since(start)

	if opts.Validate {
		sample := func(i int) surfacehash.Sample[uint64] { return samples[i] }
		eq := func(a, b uint64) bool { return a == b }
		if err := m.Validate(ctx, sample, len(samples), eq, runtime.NumCPU()); err != nil {
			return err
		}
	}

	mask := ^uint64(0)
	if opts.Payload >= 0 && opts.Payload < 8 {
		mask = uint64(1)<<(8*uint(opts.Payload)) - 1
	}
	err = m.WriteFile(opts.Out, opts.Payload, func(v uint64) uint64 { return v & mask },
		surfacehash.WithUserMetadata([]byte(opts.Metadata)))
	if err != nil {
		return err
	}

	st, err := surfacehash.GetStats(opts.Out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d samples, %d attempts, %.2f s\n", opts.Out, st.NumSamples, st.Attempts, buildDuration.Seconds())
	printStats(os.Stdout, st)
	return nil
}
