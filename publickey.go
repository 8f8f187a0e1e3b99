package pbosign

import (
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"

	"github.com/connesc/pbosign/reader"
)

// PublicKey is an RSA public key owned by an authority, as stored in .bikey files.
type PublicKey struct {
	authority Authority
	key       rsa.PublicKey
	bits      int
}

// ReadPublicKey decodes a .bikey file.
func ReadPublicKey(input io.Reader) (*PublicKey, error) {
	const record = "bikey"
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

	expectedLen := bits/8 + keyHeaderLen
	if bodyLen != expectedLen {
		return nil, recordErrf(record, "body length", "must be %d for a %d-bit key, got %d", expectedLen, bits, bodyLen)
	}

	exponentBytes, err := rd.ReadFull(4)
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
	if modulus.Sign() == 0 {
		return nil, recordErrf(record, "modulus", "must not be zero")
	}

	return &PublicKey{
		authority: authority,
		key:       rsa.PublicKey{N: modulus, E: exponent},
		bits:      int(bits),
	}, nil
}

// Authority owning the key.
func (k *PublicKey) Authority() Authority {
	return k.authority
}

// Bits is the key length.
func (k *PublicKey) Bits() int {
	return k.bits
}

// Modulus of the key.
func (k *PublicKey) Modulus() *big.Int {
	return new(big.Int).Set(k.key.N)
}

// Exponent of the key.
func (k *PublicKey) Exponent() int {
	return k.key.E
}

// Equal reports whether both keys have the same authority and RSA parameters.
func (k *PublicKey) Equal(other *PublicKey) bool {
	return k.authority == other.authority && k.bits == other.bits &&
		k.key.E == other.key.E && k.key.N.Cmp(other.key.N) == 0
}

// MarshalBinary encodes the key in the .bikey format.
func (k *PublicKey) MarshalBinary() ([]byte, error) {
	bits := uint32(k.bits)

	data := appendCString(nil, k.authority.String())
	data = appendUint32(data, bits/8+keyHeaderLen)
	data = appendKeyHeader(data, publicBlobMagic, publicKeyTag, bits, k.key.E)
	data, err := appendLE(data, k.key.N, k.bits/8)
	if err != nil {
		return nil, fmt.Errorf("bikey: %w", err)
	}
	return data, nil
}

// WriteTo writes the .bikey encoding of the key.
func (k *PublicKey) WriteTo(w io.Writer) (int64, error) {
	data, err := k.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Verify checks a signature against an archive. The authority of the signature is not compared
// to the one of the key.
//
// The error is only set when the hashes cannot be computed; a signature that does not match is
// reported with false.
func (k *PublicKey) Verify(archive *Archive, signature *Signature) (bool, error) {
	hashes, err := archive.Hashes(signature.version, k.bits)
	if err != nil {
		return false, err
	}

	e := big.NewInt(int64(k.key.E))
	ok1 := new(big.Int).Exp(signature.sig1, e, k.key.N).Cmp(hashes.Hash1) == 0
	ok2 := new(big.Int).Exp(signature.sig2, e, k.key.N).Cmp(hashes.Hash2) == 0
	ok3 := new(big.Int).Exp(signature.sig3, e, k.key.N).Cmp(hashes.Hash3) == 0

	return ok1 && ok2 && ok3, nil
}
