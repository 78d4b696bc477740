package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamirms/surfacehash"
	surferrors "github.com/tamirms/surfacehash/errors"
)

var cmdQuery = &cobra.Command{
	Use:   "query [flags] POSITION ...",
	Short: "Look up positions in an index file",
	Long: `
The "query" command looks up each comma-separated position (for example
"12,0,7") and prints its payload, or "not found".
`,
	Args:              cobra.MinimumNArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(queryOptions.Index, args)
	},
}

// QueryOptions bundles all options for the query command.
type QueryOptions struct {
	Index string
}

var queryOptions QueryOptions

func init() {
	cmdRoot.AddCommand(cmdQuery)

	f := cmdQuery.Flags()
	f.StringVar(&queryOptions.Index, "index", "surface.idx", "index file")
}

func runQuery(path string, args []string) (err error) {
	idx, err := surfacehash.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, idx.Close()) }()

	for _, arg := range args {
		pos, err := parsePosition(arg)
		if err != nil {
			return err
		}
		if len(pos) != idx.Dims() {
			return fmt.Errorf("position %q has %d coordinates, index has %d dims", arg, len(pos), idx.Dims())
		}
		if !idx.HasPayload() {
			ok, err := idx.Contains(pos)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%v\n", arg, ok)
			continue
		}
		v, err := idx.QueryPayload(pos)
		switch {
		case errors.Is(err, surferrors.ErrNotFound):
			fmt.Printf("%s\tnot found\n", arg)
		case err != nil:
			return err
		default:
			fmt.Printf("%s\t%d\n", arg, v)
		}
	}
	return nil
}
