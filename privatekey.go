package pbosign

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"

	"github.com/connesc/pbosign/reader"
)

const (
	// DefaultKeyBits is the key length used by the official tools.
	DefaultKeyBits = 1024

	// MinGenerateBits is the shortest key GenerateKey creates. Shorter keys can still be read.
	MinGenerateBits = 1024
)

// PrivateKey is an RSA key owned by an authority, as stored in .biprivatekey files.
//
// A PrivateKey is immutable and may be shared between goroutines.
type PrivateKey struct {
	authority Authority
	key       *rsa.PrivateKey
	bits      int
}

// GenerateKey creates a new key of the given length for the authority.
func GenerateKey(authority Authority, bits int) (*PrivateKey, error) {
	if authority.IsZero() {
		return nil, fmt.Errorf("biprivatekey: %w: empty name", ErrInvalidAuthority)
	}
	if bits%16 != 0 || bits < MinGenerateBits || bits > maxKeyBits {
		return nil, fmt.Errorf("biprivatekey: key length must be a multiple of 16 between %d and %d, got %d", MinGenerateBits, maxKeyBits, bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("biprivatekey: failed to generate key: %w", err)
	}

	return NewPrivateKey(authority, key)
}

// NewPrivateKey wraps an existing two-prime RSA key.
func NewPrivateKey(authority Authority, key *rsa.PrivateKey) (*PrivateKey, error) {
	if authority.IsZero() {
		return nil, fmt.Errorf("biprivatekey: %w: empty name", ErrInvalidAuthority)
	}
	if len(key.Primes) != 2 {
		return nil, fmt.Errorf("biprivatekey: expected 2 primes, got %d", len(key.Primes))
	}
	bits := key.N.BitLen()
	if bits%16 != 0 || bits > maxKeyBits {
		return nil, fmt.Errorf("biprivatekey: modulus length must be a multiple of 16 up to %d, got %d", maxKeyBits, bits)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("biprivatekey: %w", err)
	}

	key.Precompute()

	return &PrivateKey{
		authority: authority,
		key:       key,
		bits:      bits,
	}, nil
}

// ReadPrivateKey decodes a .biprivatekey file.
func ReadPrivateKey(input io.Reader) (*PrivateKey, error) {
	const record = "biprivatekey"
	rd := reader.New(input)

	authority, err := readAuthority(rd, record)
	if err != nil {
		return nil, err
	}

	bodyLen, err := rd.ReadUint32()
	if err != nil {
		return nil, recordErr(record, "body length", err)
	}

	bits, err := readKeyHeader(rd, record, privateBlobMagic, privateKeyTag)
	if err != nil {
		return nil, err
	}

	expectedLen := bits/16*9 + keyHeaderLen
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

	fields := []struct {
		name string
		size uint32
	}{
		{"modulus", bits / 8},
		{"prime1", bits / 16},
		{"prime2", bits / 16},
		{"exponent1", bits / 16},
		{"exponent2", bits / 16},
		{"coefficient", bits / 16},
		{"private exponent", bits / 8},
	}
	values := make([]*big.Int, len(fields))
	for i, field := range fields {
		values[i], err = readLE(rd, record, field.name, field.size)
		if err != nil {
			return nil, err
		}
	}
	n, p, q, dp, dq, qinv, d := values[0], values[1], values[2], values[3], values[4], values[5], values[6]

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: exponent},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	if err := key.Validate(); err != nil {
		return nil, recordErr(record, "key", err)
	}
	key.Precompute()

	if key.Precomputed.Dp.Cmp(dp) != 0 || key.Precomputed.Dq.Cmp(dq) != 0 || key.Precomputed.Qinv.Cmp(qinv) != 0 {
		return nil, recordErrf(record, "crt", "CRT parameters do not match the primes")
	}

	return &PrivateKey{
		authority: authority,
		key:       key,
		bits:      int(bits),
	}, nil
}

// Authority owning the key.
func (k *PrivateKey) Authority() Authority {
	return k.authority
}

// Bits is the key length.
func (k *PrivateKey) Bits() int {
	return k.bits
}

// PublicKey returns the public part of the key.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{
		authority: k.authority,
		key:       rsa.PublicKey{N: k.key.N, E: k.key.E},
		bits:      k.bits,
	}
}

// MarshalBinary encodes the key in the .biprivatekey format.
func (k *PrivateKey) MarshalBinary() ([]byte, error) {
	bits := uint32(k.bits)
	half := k.bits / 16

	data := appendCString(nil, k.authority.String())
	data = appendUint32(data, bits/16*9+keyHeaderLen)
	data = appendKeyHeader(data, privateBlobMagic, privateKeyTag, bits, k.key.E)

	fields := []struct {
		value *big.Int
		size  int
	}{
		{k.key.N, k.bits / 8},
		{k.key.Primes[0], half},
		{k.key.Primes[1], half},
		{k.key.Precomputed.Dp, half},
		{k.key.Precomputed.Dq, half},
		{k.key.Precomputed.Qinv, half},
		{k.key.D, k.bits / 8},
	}
	var err error
	for _, field := range fields {
		data, err = appendLE(data, field.value, field.size)
		if err != nil {
			return nil, fmt.Errorf("biprivatekey: %w", err)
		}
	}
	return data, nil
}

// WriteTo writes the .biprivatekey encoding of the key.
func (k *PrivateKey) WriteTo(w io.Writer) (int64, error) {
	data, err := k.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Sign computes the signature of an archive.
//
// Each of the three hashes is signed by its own modular exponentiation.
func (k *PrivateKey) Sign(archive *Archive, version Version) (*Signature, error) {
	hashes, err := archive.Hashes(version, k.bits)
	if err != nil {
		return nil, err
	}

	return &Signature{
		version:   version,
		authority: k.authority,
		bits:      k.bits,
		key:       rsa.PublicKey{N: k.key.N, E: k.key.E},
		sig1:      k.exp(hashes.Hash1),
		sig2:      k.exp(hashes.Hash2),
		sig3:      k.exp(hashes.Hash3),
	}, nil
}

// exp computes m^d mod n using the CRT parameters.
func (k *PrivateKey) exp(m *big.Int) *big.Int {
	p, q := k.key.Primes[0], k.key.Primes[1]
	crt := &k.key.Precomputed

	m1 := new(big.Int).Exp(m, crt.Dp, p)
	m2 := new(big.Int).Exp(m, crt.Dq, q)

	h := m1.Sub(m1, m2)
	h.Mul(h, crt.Qinv)
	h.Mod(h, p)
	h.Mul(h, q)
	return h.Add(h, m2)
}
