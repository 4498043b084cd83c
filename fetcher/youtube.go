package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/LautaroIbanez/Pots/model"
	"google.golang.org/api/youtube/v3"
)

const (
	// UnknownChannel is returned when a channel name cannot be resolved.
	UnknownChannel = "Unknown Channel"

	playlistPageSize = 50
	maxPlaylistPages = 10
	metadataBatch    = 50
	overfetchFactor  = 10

	scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var (
	channelIDPattern = regexp.MustCompile(`channel/([a-zA-Z0-9_-]+)`)
	handlePattern    = regexp.MustCompile(`@([^/?]+)`)
	legacyPattern    = regexp.MustCompile(`/c/([^/?]+)`)

	// Undocumented fields embedded in the channel page HTML. May break
	// without notice, which is why scraping is the strategy of last resort.
	scrapeChannelID  = regexp.MustCompile(`"channelId":"([^"]+)"`)
	scrapeExternalID = regexp.MustCompile(`"externalId":"([^"]+)"`)
)

type Youtube struct {
	client     *youtube.Service
	hasAPIKey  bool
	maxVideos  int
	scrapeBase string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewYoutube(client *youtube.Service, hasAPIKey bool, maxVideos int, logger *slog.Logger) *Youtube {
	return &Youtube{
		client:     client,
		hasAPIKey:  hasAPIKey,
		maxVideos:  maxVideos,
		scrapeBase: "https://www.youtube.com",
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// ResolveChannelID maps a channel URL or handle to a channel id. Strategies
// are tried in order, each one guarded, and an empty result means the
// channel is unresolvable and should be skipped.
func (y *Youtube) ResolveChannelID(ctx context.Context, channelURL string) model.YoutubeChannelID {
	decoded, err := url.QueryUnescape(channelURL)
	if err != nil {
		decoded = channelURL
	}

	if m := channelIDPattern.FindStringSubmatch(decoded); m != nil {
		return model.YoutubeChannelID(m[1])
	}

	var handle, legacy string
	if m := handlePattern.FindStringSubmatch(decoded); m != nil {
		handle = m[1]
	}
	if m := legacyPattern.FindStringSubmatch(decoded); m != nil {
		legacy = m[1]
	}

	if y.hasAPIKey && handle != "" {
		if id := y.channelByHandle(ctx, handle); id != "" {
			return id
		}
		if id := y.searchChannel(ctx, handle); id != "" {
			return id
		}
	}
	if y.hasAPIKey && legacy != "" {
		if id := y.searchChannel(ctx, legacy); id != "" {
			return id
		}
	}

	if handle != "" {
		if id := y.scrapeChannelPage(ctx, "@"+handle); id != "" {
			return id
		}
	}
	if legacy != "" {
		if id := y.scrapeChannelPage(ctx, "c/"+legacy); id != "" {
			return id
		}
	}

	return ""
}

// ChannelName resolves the display name of a channel. It never fails, any
// problem yields the UnknownChannel sentinel.
func (y *Youtube) ChannelName(ctx context.Context, channelID model.YoutubeChannelID) string {
	if !y.hasAPIKey {
		return UnknownChannel
	}
	response, err := y.client.Channels.
		List([]string{"snippet"}).
		Id(string(channelID)).
		Context(ctx).
		Do()
	if err != nil || len(response.Items) == 0 || response.Items[0].Snippet == nil {
		y.logger.Warn("could not resolve channel name", "channelid", channelID, "error", err)
		return UnknownChannel
	}

	return response.Items[0].Snippet.Title
}

// RecentLongVideos walks the uploads playlist of a channel and returns at
// most the configured number of videos whose duration is at least
// minSeconds, newest first. All failures degrade to whatever was collected
// so far, an unusable channel yields an empty result.
func (y *Youtube) RecentLongVideos(ctx context.Context, channelURL string, minSeconds int) []*model.Video {
	if !y.hasAPIKey {
		y.logger.Warn("no youtube api key configured, cannot discover videos", "channel", channelURL)
		return nil
	}
	channelID := y.ResolveChannelID(ctx, channelURL)
	if channelID == "" {
		y.logger.Warn("could not resolve channel id", "channel", channelURL)
		return nil
	}
	channelName := y.ChannelName(ctx, channelID)

	uploads, err := y.uploadsPlaylistID(ctx, channelID)
	if err != nil {
		y.logger.Warn("could not find uploads playlist", "channel", channelURL, "error", err)
		return nil
	}
	ids := y.playlistVideoIDs(ctx, uploads)

	videos := make([]*model.Video, 0, y.maxVideos)
	for start := 0; start < len(ids); start += metadataBatch {
		end := start + metadataBatch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		details, err := y.videoDetails(ctx, chunk)
		if err != nil {
			y.logger.Warn("could not fetch video details", "channel", channelURL, "error", err)
			break
		}
		// Walk the chunk in playlist order so the result stays
		// newest-first and deterministic.
		for _, id := range chunk {
			item, ok := details[id]
			if !ok {
				continue
			}
			seconds, err := ParseISODuration(item.ContentDetails.Duration)
			if err != nil {
				seconds = 0
			}
			if seconds < minSeconds {
				continue
			}
			videos = append(videos, &model.Video{
				VideoID:     string(id),
				Title:       item.Snippet.Title,
				ChannelName: channelName,
				ChannelURL:  channelURL,
				PublishedAt: item.Snippet.PublishedAt,
				VideoURL:    "https://www.youtube.com/watch?v=" + string(id),
			})
			if len(videos) >= y.maxVideos {
				return videos
			}
		}
	}

	return videos
}

func (y *Youtube) channelByHandle(ctx context.Context, handle string) model.YoutubeChannelID {
	response, err := y.client.Channels.
		List([]string{"id"}).
		ForHandle(handle).
		Context(ctx).
		Do()
	if err != nil {
		y.logger.Warn("channel lookup by handle failed", "handle", handle, "error", err)
		return ""
	}
	if len(response.Items) == 0 {
		return ""
	}

	return model.YoutubeChannelID(response.Items[0].Id)
}

func (y *Youtube) searchChannel(ctx context.Context, query string) model.YoutubeChannelID {
	response, err := y.client.Search.
		List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		y.logger.Warn("channel search failed", "query", query, "error", err)
		return ""
	}
	if len(response.Items) == 0 || response.Items[0].Id == nil {
		return ""
	}

	return model.YoutubeChannelID(response.Items[0].Id.ChannelId)
}

// scrapeChannelPage extracts the channel id from the public channel page
// HTML. Best effort only, every failure yields an empty id.
func (y *Youtube) scrapeChannelPage(ctx context.Context, page string) model.YoutubeChannelID {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.scrapeBase+"/"+page, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	resp, err := y.httpClient.Do(req)
	if err != nil {
		y.logger.Warn("channel page scrape failed", "page", page, "error", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		y.logger.Warn("channel page scrape failed", "page", page, "status", resp.StatusCode)
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return ""
	}

	if m := scrapeChannelID.FindSubmatch(body); m != nil {
		return model.YoutubeChannelID(m[1])
	}
	if m := scrapeExternalID.FindSubmatch(body); m != nil {
		return model.YoutubeChannelID(m[1])
	}

	return ""
}

func (y *Youtube) uploadsPlaylistID(ctx context.Context, channelID model.YoutubeChannelID) (string, error) {
	response, err := y.client.Channels.
		List([]string{"contentDetails"}).
		Id(string(channelID)).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(response.Items) == 0 || response.Items[0].ContentDetails == nil {
		return "", fmt.Errorf("channel %s has no content details", channelID)
	}
	uploads := response.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", fmt.Errorf("channel %s has no uploads playlist", channelID)
	}

	return uploads, nil
}

// playlistVideoIDs pages through the uploads playlist, overfetching so that
// the duration filter further down still leaves enough videos. The page
// ceiling guards against a runaway loop on a never-empty page token.
func (y *Youtube) playlistVideoIDs(ctx context.Context, playlistID string) []model.YoutubeVideoID {
	ids := []model.YoutubeVideoID{}
	token := ""
	for page := 0; page < maxPlaylistPages; page++ {
		call := y.client.PlaylistItems.
			List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(playlistPageSize).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		response, err := call.Do()
		if err != nil {
			y.logger.Warn("playlist page fetch failed, continuing with partial result", "playlist", playlistID, "error", err)
			break
		}
		for _, item := range response.Items {
			if item.ContentDetails == nil {
				continue
			}
			ids = append(ids, model.YoutubeVideoID(item.ContentDetails.VideoId))
		}
		if len(ids) >= y.maxVideos*overfetchFactor {
			break
		}
		token = response.NextPageToken
		if token == "" {
			break
		}
	}

	return ids
}

func (y *Youtube) videoDetails(ctx context.Context, ids []model.YoutubeVideoID) (map[model.YoutubeVideoID]*youtube.Video, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = string(id)
	}
	response, err := y.client.Videos.
		List([]string{"snippet", "contentDetails"}).
		Id(strings.Join(strIDs, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	details := make(map[model.YoutubeVideoID]*youtube.Video, len(response.Items))
	for _, item := range response.Items {
		if item.Snippet == nil || item.ContentDetails == nil {
			continue
		}
		details[model.YoutubeVideoID(item.Id)] = item
	}

	return details, nil
}
