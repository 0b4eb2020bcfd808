package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NullValue is what the device expects for unset core, launch type and
// button mapping slots.
const NullValue = "NULL"

const metaIndent = "    "

// Document keys as the device reads them.
const (
	KeyFileName    = "romFileName"
	KeyTitle       = "romTitle"
	KeyCore        = "romCore"
	KeyLaunchType  = "romLaunchType"
	KeyPlatform    = "romPlatform"
	KeyGenre       = "romGenre"
	KeyReleaseDate = "romReleaseDate"
	KeyPlayers     = "romPlayers"
	KeyDescription = "romDescription"
	KeyPublisher   = "romPublisher"
	KeyDeveloper   = "romDeveloper"
	KeyMapping     = "romMapping"
)

var knownKeys = []string{
	KeyFileName, KeyTitle, KeyCore, KeyLaunchType, KeyPlatform, KeyGenre,
	KeyReleaseDate, KeyPlayers, KeyDescription, KeyPublisher, KeyDeveloper, KeyMapping,
}

// GameMeta is the per entry metadata document stored as <base>.json.
// Keys the tool does not know about are kept in Extra and written back
// untouched.
type GameMeta struct {
	FileName    string
	Title       string
	Core        string
	LaunchType  string
	Platform    string
	Genre       string
	ReleaseDate string
	Players     int
	Description string
	Publisher   string
	Developer   string
	Mapping     Mapping
	Extra       map[string]json.RawMessage
}

// NewGameMeta returns a document carrying the device defaults.
func NewGameMeta() *GameMeta {
	return &GameMeta{
		Core:       NullValue,
		LaunchType: NullValue,
		Platform:   "Unknown",
		Players:    1,
		Mapping:    DefaultMapping(),
	}
}

// DecodeGameMeta parses a metadata document.
func DecodeGameMeta(data []byte) (*GameMeta, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("metadata document is null")
	}

	meta := &GameMeta{Mapping: DefaultMapping()}
	strFields := map[string]*string{
		KeyFileName:    &meta.FileName,
		KeyTitle:       &meta.Title,
		KeyCore:        &meta.Core,
		KeyLaunchType:  &meta.LaunchType,
		KeyPlatform:    &meta.Platform,
		KeyGenre:       &meta.Genre,
		KeyReleaseDate: &meta.ReleaseDate,
		KeyDescription: &meta.Description,
		KeyPublisher:   &meta.Publisher,
		KeyDeveloper:   &meta.Developer,
	}
	for key, value := range raw {
		if dst, ok := strFields[key]; ok {
			s, err := decodeString(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			*dst = s
			continue
		}
		switch key {
		case KeyPlayers:
			n, err := decodePlayers(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			meta.Players = n
		case KeyMapping:
			if err := meta.Mapping.decode(value); err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]json.RawMessage)
			}
			meta.Extra[key] = value
		}
	}
	return meta, nil
}

// Encode renders the document with the known keys first, in device order,
// followed by any extra keys sorted by name.
func (m *GameMeta) Encode() ([]byte, error) {
	values := map[string]interface{}{
		KeyFileName:    m.FileName,
		KeyTitle:       m.Title,
		KeyCore:        orNull(m.Core),
		KeyLaunchType:  orNull(m.LaunchType),
		KeyPlatform:    m.Platform,
		KeyGenre:       m.Genre,
		KeyReleaseDate: m.ReleaseDate,
		KeyPlayers:     m.Players,
		KeyDescription: m.Description,
		KeyPublisher:   m.Publisher,
		KeyDeveloper:   m.Developer,
		KeyMapping:     m.Mapping.normalized(),
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}
	for _, key := range knownKeys {
		data, err := json.Marshal(values[key])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		write(key, data)
	}
	extraKeys := make([]string, 0, len(m.Extra))
	for key := range m.Extra {
		if _, known := values[key]; known {
			continue
		}
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		write(key, m.Extra[key])
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", metaIndent); err != nil {
		return nil, fmt.Errorf("indent metadata: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func orNull(s string) string {
	if strings.TrimSpace(s) == "" {
		return NullValue
	}
	return s
}

func decodeString(raw json.RawMessage) (string, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string, got %s", string(raw))
}

func decodePlayers(raw json.RawMessage) (int, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return 1, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, err
		}
		return int(v), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected number, got %s", string(raw))
	}
	return ParsePlayers(s), nil
}

var playerCountRe = regexp.MustCompile(`\d+`)

// ParsePlayers turns free form player counts such as "2", "1-4" or
// "up to 2 players" into the highest number mentioned. It returns 1 when
// no number is present.
func ParsePlayers(s string) int {
	best := 0
	for _, part := range playerCountRe.FindAllString(s, -1) {
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	if best <= 0 {
		return 1
	}
	return best
}
