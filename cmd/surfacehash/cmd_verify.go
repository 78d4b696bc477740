package main

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamirms/surfacehash"
)

var cmdVerify = &cobra.Command{
	Use:   "verify [flags] [INDEX] ...",
	Short: "Check index file checksums",
	Long: `
The "verify" command opens each index file and checks the structure and
payload checksums stored in its footer.

EXIT STATUS
===========

Exit status is 0 if every index verified, and non-zero otherwise.
`,
	Args:              cobra.MinimumNArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, path := range args {
			if err := verifyIndex(path); err != nil {
				log.WithField("index", path).WithError(err).Error("verification failed")
				failed++
				continue
			}
			fmt.Printf("%s: ok\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d index files failed verification", failed, len(args))
		}
		return nil
	},
}

func init() {
	cmdRoot.AddCommand(cmdVerify)
}

func verifyIndex(path string) error {
	idx, err := surfacehash.Open(path)
	if err != nil {
		return err
	}
	return errors.Join(idx.Verify(), idx.Close())
}
