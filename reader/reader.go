// Package reader provides an offset-tracking reader for the little-endian records found in
// PBO archives and BI key and signature files.
package reader

import (
	"bytes"
	"encoding/binary"
	"io"
)

// MaxStringLen bounds null-terminated strings, so that a missing terminator in a corrupted file
// does not turn into an unbounded read.
const MaxStringLen = 1 << 16

// ErrStringTooLong is returned by ReadCString when no terminator is found within MaxStringLen.
var ErrStringTooLong = stringTooLongError{}

type stringTooLongError struct{}

func (stringTooLongError) Error() string {
	return "null-terminated string too long"
}

type Reader struct {
	inner  io.Reader
	offset int64
	err    error
	buf    [4]byte
}

var _ io.Reader = &Reader{}

// New wraps the given Reader. If it also implements io.Seeker, Discard seeks instead of reading.
func New(inner io.Reader) *Reader {
	return &Reader{
		inner:  inner,
		offset: 0,
		err:    nil,
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	n, err := r.inner.Read(p)
	r.offset += int64(n)
	r.err = err
	return n, err
}

// Offset of the next byte to be read.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Discard the next n bytes.
//
// Seekable inputs are not read: the position simply moves forward, and a short input is only
// detected by the next read.
func (r *Reader) Discard(n int64) error {
	if r.err != nil {
		return r.err
	}

	if seeker, ok := r.inner.(io.Seeker); ok {
		offset, err := seeker.Seek(n, io.SeekCurrent)
		if err != nil {
			r.err = err
			return err
		}
		r.offset = offset
		return nil
	}

	discarded, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF && discarded > 0 {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// ReadFull reads exactly n bytes.
func (r *Reader) ReadFull(n int) ([]byte, error) {
	data := make([]byte, n)
	_, err := io.ReadFull(r, data)
	if err == io.EOF && n > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	_, err := io.ReadFull(r, r.buf[:])
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:]), nil
}

// ReadCString reads bytes up to and including the next zero byte, and returns them without the
// terminator.
func (r *Reader) ReadCString() (string, error) {
	var s bytes.Buffer
	for {
		_, err := io.ReadFull(r, r.buf[:1])
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return "", err
		}
		if r.buf[0] == 0 {
			return s.String(), nil
		}
		if s.Len() >= MaxStringLen {
			return "", ErrStringTooLong
		}
		s.WriteByte(r.buf[0])
	}
}
