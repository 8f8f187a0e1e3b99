package pbosign

import (
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
	"math/big"
	"strings"
)

// DER prefix of a SHA-1 DigestInfo, preceded by the zero byte ending the padding.
var sha1DigestInfo = []byte{
	0x00,
	0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14,
}

// minPaddedLen covers the DigestInfo and the digest.
const minPaddedLen = 36

// Hashes are the three padded digests signed by a BI signature.
type Hashes struct {
	Hash1, Hash2, Hash3 *big.Int
}

// Hashes computes the values to sign or verify for the given signature version and key length.
func (a *Archive) Hashes(version Version, bits int) (*Hashes, error) {
	if err := version.Valid(); err != nil {
		return nil, err
	}
	size := bits / 8
	if size < minPaddedLen {
		return nil, fmt.Errorf("hash: key length must be at least %d bits, got %d", minPaddedLen*8, bits)
	}

	contentHash, err := a.contentHash(version)
	if err != nil {
		return nil, err
	}
	namesHash := a.namesHash()
	suffix := a.prefixSuffix()

	h := sha1.New()
	h.Write(a.Checksum)
	h.Write(namesHash)
	h.Write(suffix)
	hash2 := h.Sum(nil)

	h.Reset()
	h.Write(contentHash)
	h.Write(namesHash)
	h.Write(suffix)
	hash3 := h.Sum(nil)

	return &Hashes{
		Hash1: padHash(a.Checksum, size),
		Hash2: padHash(hash2, size),
		Hash3: padHash(hash3, size),
	}, nil
}

// contentHash digests the contents of the entries selected by the version, in table order.
func (a *Archive) contentHash(version Version) ([]byte, error) {
	h := sha1.New()
	hashed := false

	offset := a.blobStart
	for _, entry := range a.Entries {
		if entry.Size != 0 && version.ShouldHash(entry.Filename) {
			err := copyEntry(h, io.NewSectionReader(a.source, offset, int64(entry.Size)))
			if err != nil {
				return nil, fmt.Errorf("hash: failed to read %q: %w", entry.Filename, err)
			}
			hashed = true
		}
		offset += int64(entry.Size)
	}

	if !hashed {
		h.Write(version.emptyContent())
	}

	return h.Sum(nil), nil
}

func copyEntry(h hash.Hash, section *io.SectionReader) error {
	n, err := io.Copy(h, section)
	if err != nil {
		return err
	}
	if n != section.Size() {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// namesHash digests the names of non-empty entries, with Windows separators and lower-cased.
func (a *Archive) namesHash() []byte {
	h := sha1.New()
	for _, entry := range a.Entries {
		if entry.Size != 0 {
			io.WriteString(h, strings.ToLower(strings.ReplaceAll(entry.Filename, "/", `\`)))
		}
	}
	return h.Sum(nil)
}

func (a *Archive) prefixSuffix() []byte {
	prefix, ok := a.Property("prefix")
	if !ok {
		return nil
	}
	if !strings.HasSuffix(prefix, `\`) {
		prefix += `\`
	}
	return []byte(prefix)
}

// padHash embeds a SHA-1 digest in a PKCS #1 v1.5 block of size bytes.
func padHash(digest []byte, size int) *big.Int {
	block := make([]byte, size)
	block[1] = 0x01
	tail := size - len(sha1DigestInfo) - len(digest)
	for i := 2; i < tail; i++ {
		block[i] = 0xff
	}
	copy(block[tail:], sha1DigestInfo)
	copy(block[tail+len(sha1DigestInfo):], digest)
	return new(big.Int).SetBytes(block)
}
