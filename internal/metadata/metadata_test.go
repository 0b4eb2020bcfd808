package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGamelist(t *testing.T) {
	t.Parallel()

	content := `<?xml version="1.0"?>
<gameList>
  <provider><System>Nintendo 64</System><software>Skraper</software></provider>
  <game>
    <path>./Super Mario 64.z64</path>
    <name> Super Mario 64 </name>
    <desc>Mario in 3D.</desc>
    <image>./media/box/mario.png</image>
    <marquee>./media/marquee/mario.png</marquee>
    <developer>Nintendo EAD</developer>
    <publisher>Nintendo</publisher>
    <genre>Platform</genre>
    <genre>Action</genre>
    <releasedate>19960623T000000</releasedate>
    <players>1</players>
  </game>
  <game>
    <path>./Zelda.z64</path>
    <thumbnail>/abs/zelda.jpg</thumbnail>
  </game>
  <game>
    <path>./hidden.z64</path>
    <hidden>true</hidden>
  </game>
</gameList>`
	dir := t.TempDir()
	path := filepath.Join(dir, "gamelist.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatGamelist, src.Format)
	assert.Equal(t, "Nintendo 64", src.Platform)
	require.Len(t, src.Games, 2)

	mario := src.Games[0]
	assert.Equal(t, "Super Mario 64", mario.Title)
	assert.Equal(t, "Platform, Action", mario.Genre)
	assert.Equal(t, "1996-06-23", mario.ReleaseDate)
	assert.Equal(t, filepath.Join(dir, "Super Mario 64.z64"), mario.RomPath)
	assert.Equal(t, filepath.Join(dir, "media", "box", "mario.png"), mario.BoxartPath)
	assert.Equal(t, filepath.Join(dir, "media", "marquee", "mario.png"), mario.BannerPath)

	zelda := src.Games[1]
	assert.Equal(t, "Zelda", zelda.Title)
	assert.Equal(t, "/abs/zelda.jpg", zelda.BoxartPath)
	assert.Empty(t, zelda.BannerPath)
}

func TestLoadPegasus(t *testing.T) {
	t.Parallel()

	content := "\ufeff# Sample metadata\r\n" + `collection: Super Nintendo
extensions: sfc, smc

game: First Game
file: 
  roms/rom1.sfc
  roms/rom1b.sfc
genre: Action, Adventure
developer: Dev Studio
players: 1-2
release: 1990-01-01
summary: Short
description:
  Line one
  Line two
assets.box_front: media/cover.png
assets.marquee: media/marquee.png

game: No Files
description: skipped
`
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.pegasus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := ParsePegasusFile(path)
	require.NoError(t, err)
	require.Len(t, doc.Games, 2)
	assert.Equal(t, []string{"roms/rom1.sfc", "roms/rom1b.sfc"}, doc.Games[0].Files)
	assert.Equal(t, "Short", doc.Games[0].Summary)
	assert.Equal(t, "Line one\nLine two", doc.Games[0].Description)

	src, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatPegasus, src.Format)
	assert.Equal(t, "Super Nintendo", src.Platform)
	require.Len(t, src.Games, 1)
	g := src.Games[0]
	assert.Equal(t, "First Game", g.Title)
	assert.Equal(t, "Action, Adventure", g.Genre)
	assert.Equal(t, "1-2", g.Players)
	assert.Equal(t, "Line one\nLine two", g.Description)
	assert.Equal(t, filepath.Join(dir, "roms", "rom1.sfc"), g.RomPath)
	assert.Equal(t, filepath.Join(dir, "media", "cover.png"), g.BoxartPath)
	assert.Equal(t, filepath.Join(dir, "media", "marquee.png"), g.BannerPath)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "games.csv"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "metadata.pegasus.txt")
	require.NoError(t, os.WriteFile(bad, []byte("game: A\nno colon here\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	badXML := filepath.Join(dir, "gamelist.xml")
	require.NoError(t, os.WriteFile(badXML, []byte("<gameList><game>"), 0o644))
	_, err = Load(badXML)
	assert.Error(t, err)
}

func TestNormalizeReleaseDate(t *testing.T) {
	assert.Equal(t, "1996-06-23", normalizeReleaseDate("19960623T000000"))
	assert.Equal(t, "1996-06-23", normalizeReleaseDate("19960623"))
	assert.Equal(t, "1996", normalizeReleaseDate("1996"))
}
