package batch

import (
	"os"
	"path/filepath"

	"github.com/connesc/pbosign"
	"github.com/pkg/errors"
)

// Signer signs archives with a private key.
type Signer struct {
	key  *pbosign.PrivateKey
	opts options
}

// NewSigner creates a Signer. The key is shared by all workers.
func NewSigner(key *pbosign.PrivateKey, opts ...Option) *Signer {
	return &Signer{
		key:  key,
		opts: newOptions(opts),
	}
}

// SignAll signs every archive and writes each signature next to its archive.
func (s *Signer) SignAll(paths []string) *Summary {
	results := make([]Result, len(paths))

	forEach(s.opts.workers, len(paths), func(i int) {
		results[i] = s.sign(paths[i])
	})

	summary := &Summary{}
	summary.add(results...)
	return summary
}

func (s *Signer) sign(path string) Result {
	log := s.opts.logger
	result := Result{
		Archive:   path,
		Authority: s.key.Authority().String(),
	}

	signaturePath, err := s.SignFile(path)
	if err != nil {
		result.fail(StatusFailed, err)
		log.Error().Err(err).Str("archive", path).Msg("Failed to sign archive")
		return result
	}

	result.Signature = signaturePath
	result.Status = StatusSigned
	log.Info().Str("archive", path).Str("signature", signaturePath).Msg("Signed archive")
	return result
}

// SignFile signs one archive and returns the path of the written signature.
func (s *Signer) SignFile(path string) (string, error) {
	archive, err := pbosign.OpenArchive(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to open archive")
	}
	defer archive.Close()

	signature, err := s.key.Sign(archive, s.opts.version)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign archive")
	}

	data, err := signature.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "failed to encode signature")
	}

	signaturePath := SignaturePath(path, s.key.Authority())
	if err := WriteFile(signaturePath, data, 0o644); err != nil {
		return "", err
	}
	return signaturePath, nil
}

// WriteFile writes data to a temporary file in the destination directory, then renames it, so
// that no partial file is left at path.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err = tmp.Chmod(perm); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
