package pbosign

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/connesc/pbosign/reader"
)

// Every key and signature body starts with one of these, followed by a 4-byte type tag.
var (
	publicBlobMagic  = [8]byte{0x06, 0x02, 0x00, 0x00, 0x00, 0x24, 0x00, 0x00}
	privateBlobMagic = [8]byte{0x07, 0x02, 0x00, 0x00, 0x00, 0x24, 0x00, 0x00}
)

const (
	publicKeyTag  = "RSA1"
	privateKeyTag = "RSA2"

	// magic, type tag, bit length and the 4-byte public exponent
	keyHeaderLen = 20

	maxKeyBits = 16384
)

func checkBits(record string, bits uint32) error {
	if bits == 0 || bits%16 != 0 {
		return recordErrf(record, "key length", "must be a positive multiple of 16, got %d", bits)
	}
	if bits > maxKeyBits {
		return recordErrf(record, "key length", "must be at most %d, got %d", maxKeyBits, bits)
	}
	return nil
}

// fromLE interprets b as an unsigned little-endian integer.
func fromLE(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

// appendLE appends x as an unsigned little-endian integer of exactly size bytes.
func appendLE(dst []byte, x *big.Int, size int) ([]byte, error) {
	if x.Sign() < 0 || x.BitLen() > size*8 {
		return nil, fmt.Errorf("integer of %d bits does not fit in %d bytes", x.BitLen(), size)
	}
	be := x.FillBytes(make([]byte, size))
	for i := len(be) - 1; i >= 0; i-- {
		dst = append(dst, be[i])
	}
	return dst, nil
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendUint32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendKeyHeader(dst []byte, magic [8]byte, tag string, bits uint32, exponent int) []byte {
	dst = append(dst, magic[:]...)
	dst = append(dst, tag...)
	dst = appendUint32(dst, bits)
	return appendUint32(dst, uint32(exponent))
}

// exponentFromLE decodes a public exponent, which must fit in an int as required by crypto/rsa.
func exponentFromLE(record string, b []byte) (int, error) {
	e := fromLE(b)
	if e.Sign() == 0 || e.BitLen() > 31 {
		return 0, recordErrf(record, "exponent", "unsupported public exponent %s", e)
	}
	return int(e.Int64()), nil
}

func readAuthority(rd *reader.Reader, record string) (Authority, error) {
	name, err := rd.ReadCString()
	if err != nil {
		return Authority{}, recordErr(record, "authority", err)
	}
	authority, err := NewAuthority(name)
	if err != nil {
		return Authority{}, fmt.Errorf("%s: %w", record, err)
	}
	return authority, nil
}

// readKeyHeader reads the magic, the type tag and the bit length shared by keys and signatures.
func readKeyHeader(rd *reader.Reader, record string, magic [8]byte, tag string) (uint32, error) {
	header, err := rd.ReadFull(len(magic) + len(tag))
	if err != nil {
		return 0, recordErr(record, "magic", err)
	}
	if !bytes.Equal(header[:len(magic)], magic[:]) {
		return 0, recordErrf(record, "magic", "expected % x, got % x", magic[:], header[:len(magic)])
	}
	if string(header[len(magic):]) != tag {
		return 0, recordErrf(record, "type", "expected %q, got %q", tag, header[len(magic):])
	}

	bits, err := rd.ReadUint32()
	if err != nil {
		return 0, recordErr(record, "key length", err)
	}
	if err := checkBits(record, bits); err != nil {
		return 0, err
	}
	return bits, nil
}

func readLE(rd *reader.Reader, record, field string, size uint32) (*big.Int, error) {
	data, err := rd.ReadFull(int(size))
	if err != nil {
		return nil, recordErr(record, field, err)
	}
	return fromLE(data), nil
}
