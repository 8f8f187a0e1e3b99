package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/connesc/pbosign"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var inspectType string

func init() {
	inspectCmd.Flags().StringVarP(&inspectType, "type", "t", "", "file type (pbo, bikey, biprivatekey or bisign), guessed from the extension if empty")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file...]",
	Short: "Describe archives, keys and signatures as JSON",
	Long: "Describe the files given as arguments, or stdin if none is given. " +
		"Only the public parts of private keys are printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		encoder := newEncoder(cmd.OutOrStdout())

		if len(args) == 0 {
			if inspectType == "" {
				return errors.New("--type is required when reading stdin")
			}
			return inspectInput(nil, inspectType, os.Stdin, encoder)
		}

		for _, filename := range args {
			if err := inspectFile(filename, encoder); err != nil {
				return err
			}
		}
		return nil
	},
}

type archiveFile struct {
	File *string
	*pbosign.Archive
}

type keyFile struct {
	File      *string
	Private   bool `json:",omitempty"`
	Authority pbosign.Authority
	Bits      int
	Exponent  int
	Modulus   pbosign.Hex
}

type signatureFile struct {
	File      *string
	Version   pbosign.Version
	Authority pbosign.Authority
	Bits      int
	Exponent  int
	Modulus   pbosign.Hex
	Values    [3]pbosign.Hex
}

func inspectFile(filename string, encoder *json.Encoder) error {
	kind := inspectType
	if kind == "" {
		kind = strings.TrimPrefix(filepath.Ext(filename), ".")
	}

	if strings.EqualFold(kind, "pbo") {
		archive, err := pbosign.OpenArchive(filename)
		if err != nil {
			return err
		}
		defer archive.Close()
		return encoder.Encode(archiveFile{File: &filename, Archive: archive})
	}

	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "unable to open file")
	}
	defer file.Close()

	return inspectInput(&filename, kind, file, encoder)
}

// inspectInput describes a stream. Archives need random access, so they are buffered.
func inspectInput(filename *string, kind string, input io.Reader, encoder *json.Encoder) error {
	var value interface{}
	switch strings.ToLower(kind) {
	case "pbo":
		data, err := io.ReadAll(input)
		if err != nil {
			return err
		}
		archive, err := pbosign.ReadArchive(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return describeErr(filename, err)
		}
		value = archiveFile{File: filename, Archive: archive}

	case "bikey":
		key, err := pbosign.ReadPublicKey(input)
		if err != nil {
			return describeErr(filename, err)
		}
		value = describeKey(filename, key, false)

	case "biprivatekey":
		key, err := pbosign.ReadPrivateKey(input)
		if err != nil {
			return describeErr(filename, err)
		}
		value = describeKey(filename, key.PublicKey(), true)

	case "bisign":
		signature, err := pbosign.ReadSignature(input)
		if err != nil {
			return describeErr(filename, err)
		}
		key := signature.PublicKey()
		info := signatureFile{
			File:      filename,
			Version:   signature.Version(),
			Authority: signature.Authority(),
			Bits:      signature.Bits(),
			Exponent:  key.Exponent(),
			Modulus:   key.Modulus().Bytes(),
		}
		for i, v := range signature.Values() {
			info.Values[i] = v.Bytes()
		}
		value = info

	default:
		return fmt.Errorf("unsupported file type %q", kind)
	}

	return encoder.Encode(value)
}

func describeKey(filename *string, key *pbosign.PublicKey, private bool) keyFile {
	return keyFile{
		File:      filename,
		Private:   private,
		Authority: key.Authority(),
		Bits:      key.Bits(),
		Exponent:  key.Exponent(),
		Modulus:   key.Modulus().Bytes(),
	}
}

func describeErr(filename *string, err error) error {
	if filename == nil {
		return err
	}
	return errors.Wrap(err, *filename)
}
