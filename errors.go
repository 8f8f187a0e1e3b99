package pbosign

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAuthority is returned when an authority name is empty or contains characters
	// outside of [A-Za-z0-9_.-].
	ErrInvalidAuthority = errors.New("invalid authority")

	// ErrMalformedRecord is matched by every decoding error of a binary record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNotAnArchive is returned when the first header of a file is not a version header.
	ErrNotAnArchive = errors.New("not a PBO archive")

	// ErrTrailingData is returned when bytes remain after the archive checksum.
	ErrTrailingData = errors.New("trailing data after checksum")

	// ErrKeyMismatch is returned when no public key is known for the authority of a signature.
	ErrKeyMismatch = errors.New("no public key for signature authority")

	// ErrVerificationFailed is returned when a signature does not match an archive.
	ErrVerificationFailed = errors.New("signature verification failed")
)

// RecordError describes why a binary record could not be decoded.
type RecordError struct {
	Record string // bikey, biprivatekey, bisign or pbo
	Field  string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Record, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is makes every RecordError match ErrMalformedRecord.
func (e *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func recordErr(record, field string, err error) error {
	return &RecordError{Record: record, Field: field, Err: err}
}

func recordErrf(record, field, format string, args ...interface{}) error {
	return &RecordError{Record: record, Field: field, Err: fmt.Errorf(format, args...)}
}
