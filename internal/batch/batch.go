// Package batch signs and verifies many archives concurrently. Failures are isolated per archive
// and reported in a Summary instead of aborting the batch.
package batch

import (
	"runtime"

	"github.com/connesc/pbosign"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Status of a unit of work.
type Status string

const (
	StatusSigned   Status = "signed"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Result of signing an archive or of checking one of its signatures.
type Result struct {
	Archive   string
	Signature string `json:",omitempty"`
	Authority string `json:",omitempty"`
	Status    Status
	Error     string `json:",omitempty"`

	err error
}

// Err returns the error behind a failed or skipped result.
func (r Result) Err() error {
	return r.err
}

func (r *Result) fail(status Status, err error) {
	r.Status = status
	r.err = err
	r.Error = err.Error()
}

// Summary of a batch.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Results   []Result
}

func (s *Summary) add(results ...Result) {
	for _, result := range results {
		switch result.Status {
		case StatusSigned, StatusVerified:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
		s.Results = append(s.Results, result)
	}
}

type options struct {
	workers int
	logger  zerolog.Logger
	version pbosign.Version
}

// Option configures a Signer or a Verifier.
type Option func(*options)

// WithWorkers sets the number of archives processed concurrently. Values < 1 use the number of
// CPUs.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger receiving one event per completed or failed unit of work. Workers
// log concurrently, so the logger's writer must be safe for concurrent use (see
// zerolog.SyncWriter).
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithVersion sets the signature version used by a Signer.
func WithVersion(version pbosign.Version) Option {
	return func(o *options) {
		o.version = version
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  zerolog.Nop(),
		version: pbosign.V3,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	return o
}

// forEach calls fn for every index in [0, n) on a pool of workers. fn reports its own failures,
// so that one task never cancels the others.
func forEach(workers, n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
