package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xxxsen/eversd/internal/library"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importGamelist = `<?xml version="1.0"?>
<gameList>
  <provider><System>Super Nintendo</System></provider>
  <game>
    <path>./Super Metroid.sfc</path>
    <name>Super Metroid</name>
    <desc>Samus returns.</desc>
    <image>./media/metroid.png</image>
    <developer>Nintendo R&amp;D1</developer>
    <publisher>Nintendo</publisher>
    <genre>Action</genre>
    <releasedate>19940319T000000</releasedate>
    <players>1</players>
  </game>
  <game>
    <path>./Missing.sfc</path>
    <name>Missing Game</name>
  </game>
</gameList>`

func newImportFixture(t *testing.T) (string, string) {
	t.Helper()
	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "gamelist.xml"), importGamelist)
	writeTestFile(t, filepath.Join(src, "Super Metroid.sfc"), "metroid")
	writeTestImage(t, filepath.Join(src, "media", "metroid.png"), 200, 280)
	return filepath.Join(src, "gamelist.xml"), t.TempDir()
}

func TestImportCreatesEntries(t *testing.T) {
	useConfig(t, nil)
	ctx := context.Background()
	gamelist, root := newImportFixture(t)
	out := &bytes.Buffer{}
	cmd := &ImportCommand{libraryFlags: libraryFlags{dir: root}, src: gamelist, core: "snes9x", out: out}

	summary, err := cmd.importFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ImportSummary{Created: 1, Skipped: 1}, summary)
	assert.Contains(t, out.String(), `skip "Missing Game"`)

	repo := library.New(root)
	details, err := repo.Details(ctx, "supermetroid")
	require.NoError(t, err)
	assert.Equal(t, "Super Metroid", details.Meta.Title)
	assert.Equal(t, "Super Nintendo", details.Meta.Platform)
	assert.Equal(t, "snes9x", details.Meta.Core)
	assert.Equal(t, "1994-03-19", details.Meta.ReleaseDate)
	assert.Equal(t, 1, details.Meta.Players)
	assert.Equal(t, "Nintendo R&D1", details.Meta.Developer)
	assert.Equal(t, "supermetroid.sfc", details.Meta.FileName)
	assert.NotEmpty(t, details.BoxartPath)

	// a second run only reports conflicts
	summary, err = cmd.importFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ImportSummary{Skipped: 2}, summary)

	cmd.overwrite = true
	summary, err = cmd.importFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
}

func TestImportDryRun(t *testing.T) {
	useConfig(t, nil)
	gamelist, root := newImportFixture(t)
	cmd := &ImportCommand{libraryFlags: libraryFlags{dir: root}, src: gamelist, platform: "SNES", dryRun: true, out: &bytes.Buffer{}}

	summary, err := cmd.importFrom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	_, err = os.Stat(filepath.Join(root, library.GameDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestImportPreRun(t *testing.T) {
	useConfig(t, nil)
	cmd := NewImportCommand()
	assert.Error(t, cmd.PreRun(context.Background()))
	cmd.dir = t.TempDir()
	assert.EqualError(t, cmd.PreRun(context.Background()), "import requires --src")
}
