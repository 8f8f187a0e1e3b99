package pbosign

import (
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"

	"github.com/connesc/pbosign/reader"
)

// maxExponentLen bounds the variable-length exponent of a signature.
const maxExponentLen = 8

// Signature of an archive, as stored in .bisign files. It embeds a copy of the signer's public
// key and three signed values.
type Signature struct {
	version   Version
	authority Authority
	bits      int
	key       rsa.PublicKey
	sig1      *big.Int
	sig2      *big.Int
	sig3      *big.Int
}

// ReadSignature decodes a .bisign file.
func ReadSignature(input io.Reader) (*Signature, error) {
	const record = "bisign"
	rd := reader.New(input)

	authority, err := readAuthority(rd, record)
	if err != nil {
		return nil, err
	}

	bodyLen, err := rd.ReadUint32()
	if err != nil {
		return nil, recordErr(record, "body length", err)
	}

	bits, err := readKeyHeader(rd, record, publicBlobMagic, publicKeyTag)
	if err != nil {
		return nil, err
	}

	fixedLen := 16 + bits/8
	if bodyLen <= fixedLen || bodyLen-fixedLen > maxExponentLen {
		return nil, recordErrf(record, "body length", "must leave 1 to %d exponent bytes for a %d-bit key, got %d", maxExponentLen, bits, bodyLen)
	}

	exponentBytes, err := rd.ReadFull(int(bodyLen - fixedLen))
	if err != nil {
		return nil, recordErr(record, "exponent", err)
	}
	exponent, err := exponentFromLE(record, exponentBytes)
	if err != nil {
		return nil, err
	}

	modulus, err := readLE(rd, record, "modulus", bits/8)
	if err != nil {
		return nil, err
	}

	readSig := func(field string) (*big.Int, error) {
		sigLen, err := rd.ReadUint32()
		if err != nil {
			return nil, recordErr(record, field+" length", err)
		}
		if sigLen != bits/8 {
			return nil, recordErrf(record, field+" length", "must be %d for a %d-bit key, got %d", bits/8, bits, sigLen)
		}
		return readLE(rd, record, field, sigLen)
	}

	sig1, err := readSig("sig1")
	if err != nil {
		return nil, err
	}

	rawVersion, err := rd.ReadUint32()
	if err != nil {
		return nil, recordErr(record, "version", err)
	}
	version := Version(rawVersion)
	if err := version.Valid(); err != nil {
		return nil, recordErr(record, "version", err)
	}

	sig2, err := readSig("sig2")
	if err != nil {
		return nil, err
	}
	sig3, err := readSig("sig3")
	if err != nil {
		return nil, err
	}

	return &Signature{
		version:   version,
		authority: authority,
		bits:      int(bits),
		key:       rsa.PublicKey{N: modulus, E: exponent},
		sig1:      sig1,
		sig2:      sig2,
		sig3:      sig3,
	}, nil
}

// Version of the signature scheme.
func (s *Signature) Version() Version {
	return s.version
}

// Authority that produced the signature.
func (s *Signature) Authority() Authority {
	return s.authority
}

// Bits is the length of the signing key.
func (s *Signature) Bits() int {
	return s.bits
}

// PublicKey embedded in the signature. It is not authenticated by the signature itself.
func (s *Signature) PublicKey() *PublicKey {
	return &PublicKey{
		authority: s.authority,
		key:       s.key,
		bits:      s.bits,
	}
}

// Values returns copies of the three signed values.
func (s *Signature) Values() [3]*big.Int {
	return [3]*big.Int{
		new(big.Int).Set(s.sig1),
		new(big.Int).Set(s.sig2),
		new(big.Int).Set(s.sig3),
	}
}

// Equal reports whether both signatures have identical fields.
func (s *Signature) Equal(other *Signature) bool {
	return s.version == other.version &&
		s.authority == other.authority &&
		s.bits == other.bits &&
		s.key.E == other.key.E &&
		s.key.N.Cmp(other.key.N) == 0 &&
		s.sig1.Cmp(other.sig1) == 0 &&
		s.sig2.Cmp(other.sig2) == 0 &&
		s.sig3.Cmp(other.sig3) == 0
}

// MarshalBinary encodes the signature in the .bisign format. The exponent is always written on
// 4 bytes.
func (s *Signature) MarshalBinary() ([]byte, error) {
	bits := uint32(s.bits)
	size := s.bits / 8

	data := appendCString(nil, s.authority.String())
	data = appendUint32(data, bits/8+keyHeaderLen)
	data = appendKeyHeader(data, publicBlobMagic, publicKeyTag, bits, s.key.E)

	var err error
	data, err = appendLE(data, s.key.N, size)
	if err != nil {
		return nil, fmt.Errorf("bisign: modulus: %w", err)
	}

	for i, sig := range []*big.Int{s.sig1, s.sig2, s.sig3} {
		if i == 1 {
			data = appendUint32(data, uint32(s.version))
		}
		data = appendUint32(data, uint32(size))
		data, err = appendLE(data, sig, size)
		if err != nil {
			return nil, fmt.Errorf("bisign: sig%d: %w", i+1, err)
		}
	}

	return data, nil
}

// WriteTo writes the .bisign encoding of the signature.
func (s *Signature) WriteTo(w io.Writer) (int64, error) {
	data, err := s.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
