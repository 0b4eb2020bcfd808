package library

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerPatterns(t *testing.T) {
	assert.Equal(t, []string{"mario.*", "mario0*", "mario_*"}, OwnerPatterns("mario"))
}

func TestOwner(t *testing.T) {
	bases := map[string]struct{}{"mario": {}, "mario0": {}, "mario64": {}}
	tests := []struct {
		file  string
		owner string
		ok    bool
	}{
		{"mario.json", "mario", true},
		{"mario.sfc", "mario", true},
		{"mario0_1080.png", "mario", true},
		{"mario0.png", "mario", true},
		{"mario_gamebanner.png", "mario", true},
		{"mario0.json", "mario0", true},
		{"mario0.gba", "mario0", true},
		{"mario00_1080.png", "mario0", true},
		{"mario64.z64", "mario64", true},
		{"mario640.png", "mario64", true},
		{"luigi.json", "", false},
		{"mariokart.sfc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := owner(tt.file, bases)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.owner, got)
		})
	}
}

func TestOrphanKey(t *testing.T) {
	assert.Equal(t, "zelda", orphanKey("zelda0_1080.png"))
	assert.Equal(t, "zelda", orphanKey("zelda0.png"))
	assert.Equal(t, "zelda", orphanKey("zelda_gamebanner.png"))
	assert.Equal(t, "zelda", orphanKey("zelda.sfc"))
	assert.Equal(t, "zelda", orphanKey("zelda.json.tmp"))
	assert.Equal(t, "readme", orphanKey("readme"))
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/sd"}
	assert.Equal(t, "/sd/game", l.GameDir())
	assert.Equal(t, "/sd/game/x.json", l.MetadataPath("x"))
	assert.Equal(t, "/sd/game/x0_1080.png", l.BoxartPath("x"))
	assert.Equal(t, "/sd/game/x0.png", l.BoxartAltPath("x"))
	assert.Equal(t, "/sd/game/x_gamebanner.png", l.BannerPath("x"))
	assert.Equal(t, "x.sfc", RomName("x", ".sfc"))
}

func TestFilterOwned(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, GameDirName, "mario0.json"), `{}`)
	l := Layout{Root: root}

	got, err := l.FilterOwned("mario", []string{"mario.json", "mario.sfc", "mario0.json", "mario0.gba", "mario0_1080.png", "luigi.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mario.json", "mario.sfc", "mario0_1080.png"}, got)
}

func TestFilterOwnedAmongRemoteBases(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, GameDirName, "mario.json"), `{}`)
	l := Layout{Root: root}
	remote := []string{"mario.json", "mario.sfc", "mario0.json", "mario0.gba", "mario00_1080.png", "mario0_1080.png"}

	got, err := l.FilterOwnedAmong("mario", remote, MetadataBases(remote))
	require.NoError(t, err)
	assert.Equal(t, []string{"mario.json", "mario.sfc", "mario0_1080.png"}, got)

	got, err = l.FilterOwnedAmong("mario0", remote, MetadataBases(remote))
	require.NoError(t, err)
	assert.Equal(t, []string{"mario0.json", "mario0.gba", "mario00_1080.png"}, got)
}

func TestMetadataBases(t *testing.T) {
	got := MetadataBases([]string{"zelda.json", "Zelda-DX.json", "mario0.json", "mario.sfc", ".json"})
	assert.Equal(t, []string{"mario0", "zelda"}, got)
	assert.True(t, isForeignMetadata("Zelda-DX.json"))
	assert.False(t, isForeignMetadata("zelda.json"))
	assert.False(t, isForeignMetadata("zelda.sfc"))
}
