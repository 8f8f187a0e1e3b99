package cmd

import (
	"fmt"
	"os"

	"github.com/connesc/pbosign"
	"github.com/connesc/pbosign/internal/batch"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	signVersion = pbosign.V3
	signWorkers int
)

func init() {
	signCmd.Flags().Var(&signVersion, "version", "signature version (v2 or v3)")
	signCmd.Flags().IntVarP(&signWorkers, "workers", "j", 0, "number of archives signed concurrently (default: number of CPUs)")
	rootCmd.AddCommand(signCmd)
}

var signCmd = &cobra.Command{
	Use:   "sign <archive-glob> <private-key>",
	Short: "Sign PBO archives",
	Long: "Sign every .pbo file matched by the glob pattern (\"**\" matches nested directories). " +
		"Each signature is written next to its archive as <archive>.pbo.<authority>.bisign.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readPrivateKey(args[1])
		if err != nil {
			return err
		}

		archives, err := batch.ResolveArchives(args[0])
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			return fmt.Errorf("no archive matches %q", args[0])
		}

		log.Debug().
			Str("authority", key.Authority().String()).
			Int("bits", key.Bits()).
			Stringer("version", signVersion).
			Int("archives", len(archives)).
			Msg("Signing archives")

		signer := batch.NewSigner(key,
			batch.WithWorkers(signWorkers),
			batch.WithLogger(log),
			batch.WithVersion(signVersion),
		)
		return printSummary(cmd.OutOrStdout(), signer.SignAll(archives))
	},
}

func readPrivateKey(path string) (*pbosign.PrivateKey, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open private key")
	}
	defer file.Close()

	key, err := pbosign.ReadPrivateKey(file)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid private key %s", path)
	}
	return key, nil
}
