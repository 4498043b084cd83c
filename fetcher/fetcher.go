package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/LautaroIbanez/Pots/model"
	"github.com/LautaroIbanez/Pots/storage"
	"github.com/google/uuid"
)

// Placeholder summaries stored when an attempt fails. They are cached like
// real summaries, so a video with a permanently missing transcript is not
// retried on every refresh.
const (
	NoTranscriptMessage  = "No hay transcripción disponible para este video."
	SummaryFailedMessage = "Hubo un error generando el resumen."
)

type VideoLister interface {
	RecentLongVideos(ctx context.Context, channelURL string, minSeconds int) []*model.Video
}

type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID model.YoutubeVideoID) (string, error)
}

type SummaryFetcher interface {
	Summarize(ctx context.Context, transcript, title, channelName string) (string, error)
}

// Fetcher drives the refresh pipeline: discover recent long videos per
// configured channel, reuse cached summaries, and generate the missing
// ones. Channels and videos are processed one at a time.
type Fetcher struct {
	channels    []string
	policy      *DurationPolicy
	videos      VideoLister
	transcripts TranscriptFetcher
	summaries   SummaryFetcher
	videoRepo   storage.VideoRepository
	now         func() time.Time
	logger      *slog.Logger
}

func NewFetch(channels []string, policy *DurationPolicy, videos VideoLister, transcripts TranscriptFetcher, summaries SummaryFetcher, videoRepo storage.VideoRepository, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		channels:    channels,
		policy:      policy,
		videos:      videos,
		transcripts: transcripts,
		summaries:   summaries,
		videoRepo:   videoRepo,
		now:         time.Now,
		logger:      logger,
	}
}

// RefreshAll processes every configured channel in order and returns the
// per-channel grouped result. One channel failing never aborts the batch.
func (f *Fetcher) RefreshAll(ctx context.Context) []model.ChannelVideos {
	logger := f.logger.With(slog.String("run", uuid.NewString()))
	logger.Info("starting refresh", slog.Int("channels", len(f.channels)))

	groups := newGrouping()
	total := 0
	for _, channelURL := range f.channels {
		minSeconds := f.policy.Resolve(channelURL)
		videos := f.videos.RecentLongVideos(ctx, channelURL, minSeconds)
		logger.Info("discovered videos", slog.String("channel", channelURL), slog.Int("count", len(videos)), slog.Int("minseconds", minSeconds))
		for _, video := range videos {
			f.process(ctx, video, logger)
			groups.add(video)
			total++
		}
	}
	logger.Info("refresh done", slog.Int("videos", total))

	return groups.list()
}

// CachedSummaries returns everything in the store grouped per channel,
// newest first, without touching the network.
func (f *Fetcher) CachedSummaries() ([]model.ChannelVideos, error) {
	videos, err := f.videoRepo.FindAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].PublishedAt > videos[j].PublishedAt
	})

	groups := newGrouping()
	for _, video := range videos {
		groups.add(video)
	}

	return groups.list(), nil
}

// process fills in summary, transcript flag and generation timestamp for
// one candidate. A cache hit with a completed summary short-circuits all
// downstream work. Everything else ends in a Save, failures included.
func (f *Fetcher) process(ctx context.Context, video *model.Video, logger *slog.Logger) {
	cached, err := f.videoRepo.Get(model.YoutubeVideoID(video.VideoID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("could not read summary store", slog.String("video", video.VideoID), slog.String("error", err.Error()))
	}
	if cached != nil && cached.Summarized() {
		video.Summary = cached.Summary
		video.HasTranscript = cached.HasTranscript
		video.GeneratedAt = cached.GeneratedAt
		logger.Info("video already summarized", slog.String("video", video.VideoID))
		return
	}

	transcript, err := f.transcripts.Fetch(ctx, model.YoutubeVideoID(video.VideoID))
	switch {
	case err != nil:
		logger.Warn("could not fetch transcript", slog.String("video", video.VideoID), slog.String("error", err.Error()))
		video.HasTranscript = false
		video.Summary = NoTranscriptMessage
	default:
		video.HasTranscript = true
		summary, err := f.summaries.Summarize(ctx, transcript, video.Title, video.ChannelName)
		if err != nil {
			logger.Error("could not generate summary", slog.String("video", video.VideoID), slog.String("error", err.Error()))
			video.Summary = SummaryFailedMessage
		} else {
			video.Summary = summary
			logger.Info("generated summary", slog.String("video", video.VideoID))
		}
	}
	video.GeneratedAt = f.now().Format(time.RFC3339)

	if err := f.videoRepo.Save(video); err != nil {
		logger.Error("could not save video", slog.String("video", video.VideoID), slog.String("error", err.Error()))
	}
}

// grouping collects videos per channel URL, preserving first-seen channel
// order so output stays deterministic.
type grouping struct {
	order []string
	byURL map[string]*model.ChannelVideos
}

func newGrouping() *grouping {
	return &grouping{byURL: map[string]*model.ChannelVideos{}}
}

func (g *grouping) add(video *model.Video) {
	group, ok := g.byURL[video.ChannelURL]
	if !ok {
		group = &model.ChannelVideos{
			ChannelName: video.ChannelName,
			ChannelURL:  video.ChannelURL,
		}
		g.byURL[video.ChannelURL] = group
		g.order = append(g.order, video.ChannelURL)
	}
	group.Videos = append(group.Videos, video)
}

func (g *grouping) list() []model.ChannelVideos {
	groups := make([]model.ChannelVideos, 0, len(g.order))
	for _, url := range g.order {
		groups = append(groups, *g.byURL[url])
	}

	return groups
}
