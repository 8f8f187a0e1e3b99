package pbosign

import (
	"bytes"
	"crypto/sha1"
	"math/big"
	"testing"

	"github.com/connesc/pbosign/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadHash(t *testing.T) {
	t.Parallel()

	digest := bytes.Repeat([]byte{0xab}, 20)
	block := padHash(digest, 128).FillBytes(make([]byte, 128))

	assert.Equal(t, []byte{0x00, 0x01}, block[:2])
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 128-38), block[2:128-36])
	assert.Equal(t, sha1DigestInfo, block[128-36:128-20])
	assert.Equal(t, digest, block[128-20:])
}

func TestHashesRejectsShortKeys(t *testing.T) {
	t.Parallel()

	archive, err := readTestArchive(t, testutil.ConfigArchive())
	require.NoError(t, err)

	_, err = archive.Hashes(V3, 256)
	assert.Error(t, err)

	_, err = archive.Hashes(Version(4), 1024)
	assert.Error(t, err)
}

func TestShouldHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		v2, v3   bool
	}{
		{filename: "config.cfg", v3: true},
		{filename: `addons\scripts\fn_init.SQF`, v3: true},
		{filename: "data/texture.paa", v2: true},
		{filename: "Model.P3D", v2: true},
		{filename: "readme.txt"},
		{filename: "Makefile"},
		{filename: `dir.cfg\file`},
		{filename: "script.h", v3: true},
		{filename: "mission.sqm", v3: true},
		{filename: "material.rvmat", v2: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.filename, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.v2, V2.ShouldHash(tt.filename), "v2")
			assert.Equal(t, tt.v3, V3.ShouldHash(tt.filename), "v3")
		})
	}
}

// expectedHashes recomputes the hashes of an archive from its description.
func expectedHashes(a testutil.Archive, checksum []byte, version Version, prefix string) (h2, h3 []byte) {
	names := sha1.New()
	content := sha1.New()
	hashed := false
	for _, entry := range a.Entries {
		if len(entry.Data) == 0 {
			continue
		}
		names.Write(bytes.ToLower(bytes.ReplaceAll([]byte(entry.Name), []byte("/"), []byte(`\`))))
		if version.ShouldHash(entry.Name) {
			content.Write(entry.Data)
			hashed = true
		}
	}
	if !hashed {
		content.Write(version.emptyContent())
	}
	namesSum := names.Sum(nil)

	s2 := sha1.New()
	s2.Write(checksum)
	s2.Write(namesSum)
	s2.Write([]byte(prefix))
	s3 := sha1.New()
	s3.Write(content.Sum(nil))
	s3.Write(namesSum)
	s3.Write([]byte(prefix))
	return s2.Sum(nil), s3.Sum(nil)
}

func TestHashes(t *testing.T) {
	t.Parallel()

	a := testutil.Archive{
		Properties: [][2]string{{"prefix", `x\mod\addon`}},
		Entries: []testutil.Entry{
			{Name: "Config.CFG", Data: []byte("class X {};")},
			{Name: "scripts/fn_a.sqf", Data: []byte("hint 'a';")},
			{Name: "texture.paa", Data: []byte{0, 1, 2}},
			{Name: "empty.sqf"},
		},
	}

	for _, version := range []Version{V2, V3} {
		archive, err := readTestArchive(t, a)
		require.NoError(t, err)

		hashes, err := archive.Hashes(version, 1024)
		require.NoError(t, err)

		h2, h3 := expectedHashes(a, archive.Checksum, version, `x\mod\addon\`)
		assert.Equal(t, padHash(archive.Checksum, 128), hashes.Hash1, "hash1 %s", version)
		assert.Equal(t, padHash(h2, 128), hashes.Hash2, "hash2 %s", version)
		assert.Equal(t, padHash(h3, 128), hashes.Hash3, "hash3 %s", version)
	}
}

func TestHashesPrefix(t *testing.T) {
	t.Parallel()

	compute := func(properties [][2]string) *Hashes {
		a := testutil.ConfigArchive()
		a.Properties = properties
		a.Checksum = bytes.Repeat([]byte{1}, 20)
		archive, err := readTestArchive(t, a)
		require.NoError(t, err)
		hashes, err := archive.Hashes(V3, 1024)
		require.NoError(t, err)
		return hashes
	}

	withSlash := compute([][2]string{{"prefix", `x\addon\`}})
	withoutSlash := compute([][2]string{{"prefix", `x\addon`}})
	other := compute([][2]string{{"prefix", `x\other`}})
	none := compute(nil)
	unrelated := compute([][2]string{{"version", "2"}})

	assert.Equal(t, withSlash, withoutSlash)
	assert.NotEqual(t, withSlash.Hash2, other.Hash2)
	assert.NotEqual(t, withSlash.Hash3, other.Hash3)
	assert.Equal(t, withSlash.Hash1, other.Hash1)
	assert.NotEqual(t, none.Hash3, withSlash.Hash3)
	assert.Equal(t, none, unrelated)
}

func TestHashesEmptyContentFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		version  Version
		other    string
		fallback string
	}{
		{"v2", V2, "config.cfg", "nothing"},
		{"v3", V3, "logo.paa", "gnihton"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			compute := func(data string) *Hashes {
				a := testutil.Archive{
					Entries: []testutil.Entry{
						{Name: "readme.txt", Data: []byte(data)},
						{Name: tt.other, Data: []byte(data)},
					},
				}
				archive, err := readTestArchive(t, a)
				require.NoError(t, err)
				hashes, err := archive.Hashes(tt.version, 1024)
				require.NoError(t, err)
				return hashes
			}

			first := compute("first content")
			second := compute("another content")

			assert.Equal(t, first.Hash3, second.Hash3)
			assert.NotEqual(t, first.Hash1, second.Hash1)

			names := sha1.Sum([]byte("readme.txt" + tt.other))
			content := sha1.Sum([]byte(tt.fallback))
			h3 := sha1.Sum(append(content[:], names[:]...))
			assert.Equal(t, padHash(h3[:], 128), first.Hash3)
		})
	}
}

func TestHashesNamesNormalization(t *testing.T) {
	t.Parallel()

	compute := func(name string) *big.Int {
		a := testutil.Archive{
			Entries:  []testutil.Entry{{Name: name, Data: []byte("x")}},
			Checksum: make([]byte, 20),
		}
		archive, err := readTestArchive(t, a)
		require.NoError(t, err)
		hashes, err := archive.Hashes(V2, 1024)
		require.NoError(t, err)
		return hashes.Hash2
	}

	assert.Equal(t, compute(`data\file.txt`), compute("DATA/File.TXT"))
	assert.NotEqual(t, compute(`data\file.txt`), compute(`data\file2.txt`))
}
