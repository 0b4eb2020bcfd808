package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/xxxsen/eversd/internal/model"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	info *model.ScrapedInfo
	ids  []string
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (*model.ScrapedInfo, error) {
	f.ids = append(f.ids, id)
	copied := *f.info
	return &copied, nil
}

func TestApplyScrapeKeepsExplicitFlags(t *testing.T) {
	fs := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	e := &entryFieldFlags{}
	e.bindFields(fs)
	require.NoError(t, fs.Parse([]string{"--title", "My Title", "--scrape", "4157"}))

	fetcher := &fakeFetcher{info: &model.ScrapedInfo{
		Title:     "Vault Title",
		Platform:  "SNES",
		Publisher: "Nintendo",
	}}
	require.NoError(t, e.applyScrape(context.Background(), fetcher))
	assert.Equal(t, []string{"4157"}, fetcher.ids)
	assert.Equal(t, "My Title", e.title)
	assert.Equal(t, "SNES", e.platform)
	assert.Equal(t, "Nintendo", e.publisher)
	assert.True(t, e.isSet("title"))
	assert.True(t, e.isSet("platform"))
	assert.False(t, e.isSet("genre"))
}

func TestScrapeCommandJSON(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := &ScrapeCommand{
		id:      "4157",
		asJSON:  true,
		out:     out,
		fetcher: &fakeFetcher{info: &model.ScrapedInfo{Title: "Chrono Trigger", Platform: "SNES"}},
	}
	require.NoError(t, cmd.PreRun(context.Background()))
	require.NoError(t, cmd.Run(context.Background()))

	var got model.ScrapedInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Chrono Trigger", got.Title)
	assert.Equal(t, "SNES", got.Platform)
}
