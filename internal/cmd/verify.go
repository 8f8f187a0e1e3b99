package cmd

import (
	"github.com/connesc/pbosign/internal/batch"
	"github.com/spf13/cobra"
)

var verifyWorkers int

func init() {
	verifyCmd.Flags().IntVarP(&verifyWorkers, "workers", "j", 0, "number of archives checked concurrently (default: number of CPUs)")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <checked-dir> <keys-dir>",
	Short: "Verify the signatures of PBO archives",
	Long: "Check every <name>.pbo.<authority>.bisign of checked-dir against <name>.pbo, " +
		"using the <authority>.bikey files of keys-dir.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := batch.LoadKeys(args[1])
		if err != nil {
			return err
		}
		log.Debug().Int("keys", len(keys)).Str("dir", args[1]).Msg("Loaded public keys")

		verifier := batch.NewVerifier(keys,
			batch.WithWorkers(verifyWorkers),
			batch.WithLogger(log),
		)
		summary, err := verifier.VerifyDir(args[0])
		if err != nil {
			return err
		}
		return printSummary(cmd.OutOrStdout(), summary)
	},
}
