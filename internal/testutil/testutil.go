// Package testutil builds PBO archives byte by byte for tests.
package testutil

import (
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	mimeVersion = 0x5665_7273
	mimeBlank   = 0
)

// Entry is a file stored in a test archive.
type Entry struct {
	Name string
	Data []byte
}

// Archive describes a PBO to build.
type Archive struct {
	// Properties are written in order, as key/value pairs.
	Properties [][2]string
	Entries    []Entry

	// Checksum replaces the SHA-1 trailer computed by Bytes when set.
	Checksum []byte
	// Trailing bytes are appended after the checksum.
	Trailing []byte
}

// Bytes encodes the archive the way packers do: version header, properties, entry headers,
// terminator, contents, one zero byte, then the SHA-1 of everything before.
func (a Archive) Bytes() []byte {
	var data []byte

	data = appendHeader(data, "", mimeVersion, 0)
	for _, property := range a.Properties {
		data = append(data, property[0]...)
		data = append(data, 0)
		data = append(data, property[1]...)
		data = append(data, 0)
	}
	data = append(data, 0)

	for _, entry := range a.Entries {
		data = appendHeader(data, entry.Name, mimeBlank, uint32(len(entry.Data)))
	}
	data = appendHeader(data, "", mimeBlank, 0)

	for _, entry := range a.Entries {
		data = append(data, entry.Data...)
	}
	data = append(data, 0)

	if a.Checksum != nil {
		data = append(data, a.Checksum...)
	} else {
		sum := sha1.Sum(data)
		data = append(data, sum[:]...)
	}

	return append(data, a.Trailing...)
}

func appendHeader(data []byte, name string, mime uint32, size uint32) []byte {
	data = append(data, name...)
	data = append(data, 0)
	data = binary.LittleEndian.AppendUint32(data, mime)
	data = binary.LittleEndian.AppendUint32(data, size) // original size
	data = binary.LittleEndian.AppendUint32(data, 0)    // reserved
	data = binary.LittleEndian.AppendUint32(data, 0)    // timestamp
	return binary.LittleEndian.AppendUint32(data, size)
}

// WriteArchive writes the archive to dir/name and returns the path.
func WriteArchive(t testing.TB, dir, name string, a Archive) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, a.Bytes(), 0o644))
	return path
}

// ConfigArchive has a single 37-byte config.cfg entry.
func ConfigArchive() Archive {
	return Archive{
		Properties: [][2]string{{"prefix", `x\test_addon`}},
		Entries: []Entry{
			{Name: "config.cfg", Data: []byte("class CfgPatches { class test {}; };\n")},
		},
	}
}
