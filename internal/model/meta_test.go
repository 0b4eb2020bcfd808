package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameMetaEncode(t *testing.T) {
	meta := NewGameMeta()
	meta.FileName = "supermario64.z64"
	meta.Title = "Super Mario 64!"

	data, err := meta.Encode()
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "{\n    \"romFileName\": \"supermario64.z64\",\n    \"romTitle\""), text)
	assert.True(t, strings.Index(text, `"romTitle"`) < strings.Index(text, `"romMapping"`))

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "NULL", generic[KeyCore])
	assert.Equal(t, "NULL", generic[KeyLaunchType])
	assert.Equal(t, "Unknown", generic[KeyPlatform])
	assert.Equal(t, float64(1), generic[KeyPlayers])
	assert.Equal(t, "", generic[KeyPublisher])

	mapping, ok := generic[KeyMapping].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, mapping, len(MappingSlots))
	for _, slot := range MappingSlots {
		assert.Equal(t, "NULL", mapping[slot], slot)
	}
}

func TestDecodeGameMetaKeepsExtraKeys(t *testing.T) {
	doc := `{
  "romFileName": "mario.z64",
  "romTitle": "Mario",
  "romPlayers": "1-4",
  "romMapping": {"a": "B", "start": null},
  "romRating": 5,
  "customFlag": {"nested": true}
}`
	meta, err := DecodeGameMeta([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "mario.z64", meta.FileName)
	assert.Equal(t, 4, meta.Players)
	assert.Equal(t, "B", meta.Mapping["a"])
	assert.Equal(t, NullValue, meta.Mapping["start"])
	assert.Equal(t, NullValue, meta.Mapping["r2"])
	require.Contains(t, meta.Extra, "romRating")
	require.Contains(t, meta.Extra, "customFlag")

	data, err := meta.Encode()
	require.NoError(t, err)
	again, err := DecodeGameMeta(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nested": true}`, string(again.Extra["customFlag"]))
	assert.JSONEq(t, `5`, string(again.Extra["romRating"]))
	assert.Equal(t, 4, again.Players)
	assert.Equal(t, "Mario", again.Title)
}

func TestDecodeGameMetaErrors(t *testing.T) {
	tests := map[string]string{
		"truncated":      `{"romTitle": "Mar`,
		"not an object":  `["a", "b"]`,
		"null document":  `null`,
		"bad title type": `{"romTitle": {"x": 1}}`,
		"bad mapping":    `{"romMapping": "none"}`,
		"bad players":    `{"romPlayers": [1]}`,
	}
	for name, doc := range tests {
		_, err := DecodeGameMeta([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestParsePlayers(t *testing.T) {
	assert.Equal(t, 1, ParsePlayers(""))
	assert.Equal(t, 2, ParsePlayers("2"))
	assert.Equal(t, 4, ParsePlayers("1-4"))
	assert.Equal(t, 2, ParsePlayers("up to 2 players"))
	assert.Equal(t, 1, ParsePlayers("single"))
}

func TestMappingSet(t *testing.T) {
	m := DefaultMapping()
	require.NoError(t, m.Set("A", "X"))
	assert.Equal(t, "X", m["a"])
	require.NoError(t, m.Set("a", ""))
	assert.Equal(t, NullValue, m["a"])
	assert.Error(t, m.Set("turbo", "1"))
}
