package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/connesc/pbosign"
	"github.com/connesc/pbosign/internal/batch"
	"github.com/spf13/cobra"
)

var genKeyOutDir string

func init() {
	genKeyCmd.Flags().StringVarP(&genKeyOutDir, "out-dir", "o", ".", "directory receiving the key files")
	rootCmd.AddCommand(genKeyCmd)
}

var genKeyCmd = &cobra.Command{
	Use:   "gen-key <authority> [bits]",
	Short: "Generate a key pair",
	Long: "Generate <authority>.biprivatekey and <authority>.bikey. " +
		"The key length defaults to 1024 bits and must be a multiple of 16 between 1024 and 16384.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := pbosign.NewAuthority(args[0])
		if err != nil {
			return err
		}

		bits := pbosign.DefaultKeyBits
		if len(args) > 1 {
			bits, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid key length %q", args[1])
			}
		}

		key, err := pbosign.GenerateKey(authority, bits)
		if err != nil {
			return err
		}

		private, err := key.MarshalBinary()
		if err != nil {
			return err
		}
		public, err := key.PublicKey().MarshalBinary()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(genKeyOutDir, 0o755); err != nil {
			return err
		}
		privatePath := filepath.Join(genKeyOutDir, authority.String()+".biprivatekey")
		publicPath := filepath.Join(genKeyOutDir, authority.String()+".bikey")
		if err := batch.WriteFile(privatePath, private, 0o600); err != nil {
			return err
		}
		if err := batch.WriteFile(publicPath, public, 0o644); err != nil {
			return err
		}

		log.Info().
			Str("authority", authority.String()).
			Int("bits", bits).
			Str("private", privatePath).
			Str("public", publicPath).
			Msg("Generated key pair")
		return nil
	},
}
