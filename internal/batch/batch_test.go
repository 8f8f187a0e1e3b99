package batch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/connesc/pbosign"
	"github.com/connesc/pbosign/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePublicKey(t *testing.T, dir, name string, key *pbosign.PublicKey) {
	t.Helper()

	data, err := key.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func generateKey(t *testing.T, authority string) *pbosign.PrivateKey {
	t.Helper()

	key, err := pbosign.GenerateKey(pbosign.MustAuthority(authority), pbosign.DefaultKeyBits)
	require.NoError(t, err)
	return key
}

func TestSignAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	key := generateKey(t, "signer")

	first := testutil.WriteArchive(t, dir, "first.pbo", testutil.ConfigArchive())
	second := testutil.WriteArchive(t, dir, "second.pbo", testutil.Archive{
		Entries: []testutil.Entry{{Name: "fn.sqf", Data: []byte("true")}},
	})
	broken := filepath.Join(dir, "broken.pbo")
	require.NoError(t, os.WriteFile(broken, []byte("garbage"), 0o644))
	missing := filepath.Join(dir, "missing.pbo")

	var logs bytes.Buffer
	signer := NewSigner(key, WithWorkers(2), WithLogger(zerolog.New(zerolog.SyncWriter(&logs))), WithVersion(pbosign.V2))
	summary := signer.SignAll([]string{first, broken, second, missing})

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Results, 4)

	assert.Equal(t, StatusSigned, summary.Results[0].Status)
	assert.Equal(t, filepath.Join(dir, "first.pbo.signer.bisign"), summary.Results[0].Signature)
	assert.Equal(t, StatusFailed, summary.Results[1].Status)
	assert.ErrorIs(t, summary.Results[1].Err(), pbosign.ErrMalformedRecord)
	assert.NotEmpty(t, summary.Results[1].Error)
	assert.Equal(t, StatusSigned, summary.Results[2].Status)
	assert.ErrorIs(t, summary.Results[3].Err(), os.ErrNotExist)

	assert.Equal(t, 4, strings.Count(logs.String(), "\n"))

	for _, path := range []string{first, second} {
		data, err := os.ReadFile(SignaturePath(path, key.Authority()))
		require.NoError(t, err)
		signature, err := pbosign.ReadSignature(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, pbosign.V2, signature.Version())

		archive, err := pbosign.OpenArchive(path)
		require.NoError(t, err)
		ok, err := key.PublicKey().Verify(archive, signature)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, archive.Close())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "."), "leftover %s", entry.Name())
	}
	_, err = os.Stat(SignaturePath(broken, key.Authority()))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerifyDir(t *testing.T) {
	t.Parallel()

	checked := t.TempDir()
	keysDir := t.TempDir()

	trusted := generateKey(t, "trusted")
	stranger := generateKey(t, "stranger")
	writePublicKey(t, keysDir, "trusted.bikey", trusted.PublicKey())

	good := testutil.WriteArchive(t, checked, "good.pbo", testutil.ConfigArchive())
	tampered := testutil.WriteArchive(t, checked, "tampered.pbo", testutil.ConfigArchive())
	unknown := testutil.WriteArchive(t, checked, "unknown.pbo", testutil.ConfigArchive())
	testutil.WriteArchive(t, checked, "unsigned.pbo", testutil.ConfigArchive())

	summary := NewSigner(trusted).SignAll([]string{good, tampered})
	require.Equal(t, 2, summary.Succeeded)
	summary = NewSigner(stranger).SignAll([]string{unknown})
	require.Equal(t, 1, summary.Succeeded)

	// Same size, different content: only the signature check can notice.
	content := testutil.ConfigArchive()
	content.Entries[0].Data = bytes.ToUpper(content.Entries[0].Data)
	content.Checksum = nil
	testutil.WriteArchive(t, checked, "tampered.pbo", content)

	require.NoError(t, os.WriteFile(filepath.Join(checked, "good.pbo.broken.bisign"), []byte("junk"), 0o644))

	keys, err := LoadKeys(keysDir)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	var logs bytes.Buffer
	verifier := NewVerifier(keys, WithWorkers(3), WithLogger(zerolog.New(zerolog.SyncWriter(&logs))))
	summary, err = verifier.VerifyDir(checked)
	require.NoError(t, err)

	byKey := make(map[string]Result)
	for _, result := range summary.Results {
		byKey[filepath.Base(result.Archive)+"/"+result.Authority] = result
	}

	assert.Equal(t, StatusVerified, byKey["good.pbo/trusted"].Status)
	assert.Equal(t, StatusSkipped, byKey["good.pbo/broken"].Status)
	assert.ErrorIs(t, byKey["good.pbo/broken"].Err(), pbosign.ErrKeyMismatch)
	assert.Equal(t, StatusFailed, byKey["tampered.pbo/trusted"].Status)
	assert.ErrorIs(t, byKey["tampered.pbo/trusted"].Err(), pbosign.ErrVerificationFailed)
	assert.Equal(t, StatusSkipped, byKey["unknown.pbo/stranger"].Status)
	assert.Equal(t, StatusSkipped, byKey["unsigned.pbo/"].Status)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 5, strings.Count(logs.String(), "\n"))
}

func TestVerifyMalformedSignature(t *testing.T) {
	t.Parallel()

	checked := t.TempDir()
	key := generateKey(t, "team")

	testutil.WriteArchive(t, checked, "addon.pbo", testutil.ConfigArchive())
	require.NoError(t, os.WriteFile(filepath.Join(checked, "addon.pbo.team.bisign"), []byte("team\x00"), 0o644))

	keys := map[pbosign.Authority]*pbosign.PublicKey{key.Authority(): key.PublicKey()}
	summary, err := NewVerifier(keys).VerifyDir(checked)
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, StatusFailed, summary.Results[0].Status)
	assert.ErrorIs(t, summary.Results[0].Err(), pbosign.ErrMalformedRecord)
}

func TestLoadKeysAuthorityMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePublicKey(t, dir, "someone_else.bikey", generateKey(t, "team").PublicKey())

	_, err := LoadKeys(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authority mismatch")
}

func TestLoadKeysMalformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "team.bikey"), []byte("team\x00\x01"), 0o644))

	_, err := LoadKeys(dir)
	assert.ErrorIs(t, err, pbosign.ErrMalformedRecord)
}
