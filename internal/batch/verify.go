package batch

import (
	"os"

	"github.com/connesc/pbosign"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Verifier checks signatures against a set of trusted public keys.
type Verifier struct {
	keys map[pbosign.Authority]*pbosign.PublicKey
	opts options
}

// NewVerifier creates a Verifier trusting the given keys.
func NewVerifier(keys map[pbosign.Authority]*pbosign.PublicKey, opts ...Option) *Verifier {
	return &Verifier{
		keys: keys,
		opts: newOptions(opts),
	}
}

// VerifyDir checks every archive of dir against its signatures.
func (v *Verifier) VerifyDir(dir string) (*Summary, error) {
	entries, err := ListDir(dir)
	if err != nil {
		return nil, err
	}

	targets, rejected := MatchTargets(entries)
	for _, result := range rejected {
		v.log(result)
	}

	summary := v.VerifyAll(targets)
	summary.add(rejected...)
	return summary, nil
}

// VerifyAll checks the targets concurrently, one archive per worker.
func (v *Verifier) VerifyAll(targets []Target) *Summary {
	results := make([][]Result, len(targets))

	forEach(v.opts.workers, len(targets), func(i int) {
		results[i] = v.verifyTarget(targets[i])
	})

	summary := &Summary{}
	for _, targetResults := range results {
		summary.add(targetResults...)
	}
	return summary
}

func (v *Verifier) verifyTarget(target Target) []Result {
	results := make([]Result, len(target.Signatures))
	for i, sig := range target.Signatures {
		results[i] = Result{
			Archive:   target.Archive,
			Signature: sig.Path,
			Authority: sig.Authority.String(),
		}
	}

	archive, err := pbosign.OpenArchive(target.Archive)
	if err != nil {
		err = errors.Wrap(err, "failed to open archive")
		for i := range results {
			results[i].fail(StatusFailed, err)
			v.log(results[i])
		}
		return results
	}
	defer archive.Close()

	for i, sig := range target.Signatures {
		v.verifySignature(archive, sig, &results[i])
		v.log(results[i])
	}
	return results
}

func (v *Verifier) verifySignature(archive *pbosign.Archive, sig SignatureFile, result *Result) {
	key, ok := v.keys[sig.Authority]
	if !ok {
		result.fail(StatusSkipped, errors.Wrap(pbosign.ErrKeyMismatch, sig.Authority.String()))
		return
	}

	signature, err := readSignature(sig.Path)
	if err != nil {
		result.fail(StatusFailed, err)
		return
	}

	valid, err := key.Verify(archive, signature)
	if err != nil {
		result.fail(StatusFailed, errors.Wrap(err, "failed to hash archive"))
		return
	}
	if !valid {
		result.fail(StatusFailed, pbosign.ErrVerificationFailed)
		return
	}
	result.Status = StatusVerified
}

func readSignature(path string) (*pbosign.Signature, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	signature, err := pbosign.ReadSignature(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read signature")
	}
	return signature, nil
}

func (v *Verifier) log(result Result) {
	var event *zerolog.Event
	switch result.Status {
	case StatusVerified:
		event = v.opts.logger.Info()
	case StatusSkipped:
		event = v.opts.logger.Warn().Err(result.err)
	default:
		event = v.opts.logger.Error().Err(result.err)
	}
	event.
		Str("archive", result.Archive).
		Str("signature", result.Signature).
		Str("authority", result.Authority).
		Msg(string(result.Status))
}
