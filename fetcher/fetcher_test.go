package fetcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/LautaroIbanez/Pots/model"
	"github.com/LautaroIbanez/Pots/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	videos map[string][]*model.Video
	minSec map[string]int
}

func (f *fakeLister) RecentLongVideos(_ context.Context, channelURL string, minSeconds int) []*model.Video {
	if f.minSec == nil {
		f.minSec = map[string]int{}
	}
	f.minSec[channelURL] = minSeconds

	return f.videos[channelURL]
}

type fakeTranscripts struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscripts) Fetch(_ context.Context, _ model.YoutubeVideoID) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeSummaries struct {
	text  string
	err   error
	calls int
}

func (f *fakeSummaries) Summarize(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func candidate(id, channelURL string) *model.Video {
	return &model.Video{
		VideoID:     id,
		Title:       "Título " + id,
		ChannelName: "Canal",
		ChannelURL:  channelURL,
		PublishedAt: "2024-05-01T00:00:00Z",
		VideoURL:    "https://www.youtube.com/watch?v=" + id,
	}
}

func newTestFetcher(t *testing.T, channels []string, lister VideoLister, transcripts TranscriptFetcher, summaries SummaryFetcher) (*Fetcher, storage.VideoRepository) {
	t.Helper()
	repo := storage.NewFileVideoRepository(filepath.Join(t.TempDir(), "summaries.json"), testLogger())
	policy := NewDurationPolicy(600, nil, "", testLogger())
	f := NewFetch(channels, policy, lister, transcripts, summaries, repo, testLogger())
	f.now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }

	return f, repo
}

func TestRefreshAllSummarizesNewVideo(t *testing.T) {
	channel := "https://www.youtube.com/@canal"
	lister := &fakeLister{videos: map[string][]*model.Video{channel: {candidate("v1", channel)}}}
	transcripts := &fakeTranscripts{text: "hola mundo"}
	summaries := &fakeSummaries{text: "Resumen del video."}
	f, repo := newTestFetcher(t, []string{channel}, lister, transcripts, summaries)

	groups := f.RefreshAll(context.Background())

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Videos, 1)
	got := groups[0].Videos[0]
	assert.Equal(t, "Resumen del video.", got.Summary)
	assert.True(t, got.HasTranscript)
	assert.Equal(t, "2024-05-02T10:00:00Z", got.GeneratedAt)
	assert.Equal(t, 600, lister.minSec[channel])

	stored, err := repo.Get("v1")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestRefreshAllCacheHitShortCircuits(t *testing.T) {
	channel := "https://www.youtube.com/@canal"
	lister := &fakeLister{videos: map[string][]*model.Video{channel: {candidate("v1", channel)}}}
	transcripts := &fakeTranscripts{text: "hola"}
	summaries := &fakeSummaries{text: "nuevo resumen"}
	f, repo := newTestFetcher(t, []string{channel}, lister, transcripts, summaries)

	cached := candidate("v1", channel)
	cached.Summary = "Resumen cacheado."
	cached.HasTranscript = true
	cached.GeneratedAt = "2024-04-01T00:00:00Z"
	require.NoError(t, repo.Save(cached))

	groups := f.RefreshAll(context.Background())

	require.Len(t, groups, 1)
	got := groups[0].Videos[0]
	assert.Equal(t, "Resumen cacheado.", got.Summary)
	assert.True(t, got.HasTranscript)
	assert.Equal(t, "2024-04-01T00:00:00Z", got.GeneratedAt)
	assert.Zero(t, transcripts.calls)
	assert.Zero(t, summaries.calls)
}

func TestRefreshAllCachedFailureNotRetried(t *testing.T) {
	channel := "https://www.youtube.com/@canal"
	lister := &fakeLister{videos: map[string][]*model.Video{channel: {candidate("v1", channel)}}}
	transcripts := &fakeTranscripts{text: "hola"}
	summaries := &fakeSummaries{text: "resumen"}
	f, repo := newTestFetcher(t, []string{channel}, lister, transcripts, summaries)

	cached := candidate("v1", channel)
	cached.Summary = NoTranscriptMessage
	cached.GeneratedAt = "2024-04-01T00:00:00Z"
	require.NoError(t, repo.Save(cached))

	groups := f.RefreshAll(context.Background())

	assert.Equal(t, NoTranscriptMessage, groups[0].Videos[0].Summary)
	assert.Zero(t, transcripts.calls)
	assert.Zero(t, summaries.calls)
}

func TestRefreshAllNoTranscript(t *testing.T) {
	channel := "https://www.youtube.com/@canal"
	lister := &fakeLister{videos: map[string][]*model.Video{channel: {candidate("v1", channel)}}}
	transcripts := &fakeTranscripts{err: ErrTranscriptsDisabled}
	summaries := &fakeSummaries{text: "resumen"}
	f, repo := newTestFetcher(t, []string{channel}, lister, transcripts, summaries)

	groups := f.RefreshAll(context.Background())

	got := groups[0].Videos[0]
	assert.Equal(t, NoTranscriptMessage, got.Summary)
	assert.False(t, got.HasTranscript)
	assert.Equal(t, "2024-05-02T10:00:00Z", got.GeneratedAt)
	assert.Zero(t, summaries.calls)

	stored, err := repo.Get("v1")
	require.NoError(t, err)
	assert.Equal(t, NoTranscriptMessage, stored.Summary)
}

func TestRefreshAllSummaryFailure(t *testing.T) {
	channel := "https://www.youtube.com/@canal"
	lister := &fakeLister{videos: map[string][]*model.Video{channel: {candidate("v1", channel)}}}
	transcripts := &fakeTranscripts{text: "hola mundo"}
	summaries := &fakeSummaries{err: errors.New("model exploded")}
	f, repo := newTestFetcher(t, []string{channel}, lister, transcripts, summaries)

	groups := f.RefreshAll(context.Background())

	got := groups[0].Videos[0]
	assert.Equal(t, SummaryFailedMessage, got.Summary)
	assert.True(t, got.HasTranscript)
	assert.Equal(t, "2024-05-02T10:00:00Z", got.GeneratedAt)

	stored, err := repo.Get("v1")
	require.NoError(t, err)
	assert.Equal(t, SummaryFailedMessage, stored.Summary)
	assert.True(t, stored.HasTranscript)
}

func TestRefreshAllContinuesPastEmptyChannel(t *testing.T) {
	chA := "https://www.youtube.com/@vacio"
	chB := "https://www.youtube.com/@canal"
	lister := &fakeLister{videos: map[string][]*model.Video{
		chB: {candidate("v1", chB), candidate("v2", chB)},
	}}
	f, _ := newTestFetcher(t, []string{chA, chB}, lister, &fakeTranscripts{text: "hola"}, &fakeSummaries{text: "resumen"})

	groups := f.RefreshAll(context.Background())

	require.Len(t, groups, 1)
	assert.Equal(t, chB, groups[0].ChannelURL)
	assert.Len(t, groups[0].Videos, 2)
}

func TestRefreshAllGroupsPerChannelInOrder(t *testing.T) {
	chA := "https://www.youtube.com/@primero"
	chB := "https://www.youtube.com/@segundo"
	lister := &fakeLister{videos: map[string][]*model.Video{
		chA: {candidate("a1", chA)},
		chB: {candidate("b1", chB), candidate("b2", chB)},
	}}
	f, _ := newTestFetcher(t, []string{chA, chB}, lister, &fakeTranscripts{text: "hola"}, &fakeSummaries{text: "resumen"})

	groups := f.RefreshAll(context.Background())

	require.Len(t, groups, 2)
	assert.Equal(t, chA, groups[0].ChannelURL)
	assert.Equal(t, chB, groups[1].ChannelURL)
	assert.Len(t, groups[1].Videos, 2)
}

func TestCachedSummaries(t *testing.T) {
	channel := "https://www.youtube.com/@canal"
	f, repo := newTestFetcher(t, []string{channel}, &fakeLister{}, &fakeTranscripts{}, &fakeSummaries{})

	older := candidate("v1", channel)
	older.PublishedAt = "2024-04-01T00:00:00Z"
	older.Summary = "Resumen viejo."
	newer := candidate("v2", channel)
	newer.PublishedAt = "2024-05-01T00:00:00Z"
	newer.Summary = "Resumen nuevo."
	require.NoError(t, repo.Save(older))
	require.NoError(t, repo.Save(newer))

	groups, err := f.CachedSummaries()
	require.NoError(t, err)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Videos, 2)
	assert.Equal(t, "v2", groups[0].Videos[0].VideoID, "newest first")
	assert.Equal(t, "v1", groups[0].Videos[1].VideoID)
}
