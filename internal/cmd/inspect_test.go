package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/connesc/pbosign"
	"github.com/connesc/pbosign/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inspect(t *testing.T, kind string, data []byte) map[string]interface{} {
	t.Helper()

	var out bytes.Buffer
	require.NoError(t, inspectInput(nil, kind, bytes.NewReader(data), newEncoder(&out)))

	var value map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &value))
	return value
}

func TestInspect(t *testing.T) {
	key, err := pbosign.GenerateKey(pbosign.MustAuthority("inspector"), pbosign.DefaultKeyBits)
	require.NoError(t, err)

	archiveData := testutil.ConfigArchive().Bytes()
	archive, err := pbosign.ReadArchive(bytes.NewReader(archiveData), int64(len(archiveData)))
	require.NoError(t, err)
	signature, err := key.Sign(archive, pbosign.V3)
	require.NoError(t, err)

	modulus := pbosign.Hex(key.PublicKey().Modulus().Bytes()).String()

	t.Run("pbo", func(t *testing.T) {
		value := inspect(t, "pbo", archiveData)
		assert.Equal(t, []interface{}{map[string]interface{}{"Key": "prefix", "Value": `x\test_addon`}}, value["Properties"])
		entries := value["Entries"].([]interface{})
		require.Len(t, entries, 1)
		entry := entries[0].(map[string]interface{})
		assert.Equal(t, "config.cfg", entry["Filename"])
		assert.Equal(t, "blank", entry["Mime"])
		assert.EqualValues(t, 37, entry["Size"])
		assert.Equal(t, archive.Checksum.String(), value["Checksum"])
	})

	t.Run("biprivatekey", func(t *testing.T) {
		data, err := key.MarshalBinary()
		require.NoError(t, err)

		value := inspect(t, "biprivatekey", data)
		assert.Equal(t, true, value["Private"])
		assert.Equal(t, "inspector", value["Authority"])
		assert.EqualValues(t, 1024, value["Bits"])
		assert.Equal(t, modulus, value["Modulus"])
		assert.NotContains(t, value, "D")
	})

	t.Run("bikey", func(t *testing.T) {
		data, err := key.PublicKey().MarshalBinary()
		require.NoError(t, err)

		value := inspect(t, "BIKEY", data)
		assert.NotContains(t, value, "Private")
		assert.EqualValues(t, 65537, value["Exponent"])
		assert.Equal(t, modulus, value["Modulus"])
	})

	t.Run("bisign", func(t *testing.T) {
		data, err := signature.MarshalBinary()
		require.NoError(t, err)

		value := inspect(t, "bisign", data)
		assert.Equal(t, "v3", value["Version"])
		assert.Equal(t, "inspector", value["Authority"])
		assert.Len(t, value["Values"], 3)
	})

	t.Run("unsupported", func(t *testing.T) {
		err := inspectInput(nil, "txt", strings.NewReader(""), newEncoder(&bytes.Buffer{}))
		assert.EqualError(t, err, `unsupported file type "txt"`)
	})

	t.Run("malformed", func(t *testing.T) {
		name := "broken.bikey"
		err := inspectInput(&name, "bikey", strings.NewReader("x\x00"), newEncoder(&bytes.Buffer{}))
		assert.ErrorIs(t, err, pbosign.ErrMalformedRecord)
		assert.Contains(t, err.Error(), name)
	})
}
