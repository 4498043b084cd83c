package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LautaroIbanez/Pots/model"
)

var (
	ErrNoTranscript        = errors.New("no transcript available")
	ErrTranscriptsDisabled = errors.New("transcripts are disabled")
	ErrVideoUnavailable    = errors.New("video unavailable")
)

// TranscriptConfig tunes the transcript client. Zero values fall back to
// the defaults.
type TranscriptConfig struct {
	WatchBase    string
	Languages    []string
	TranslateTo  string
	MaxAttempts  int
	BaseDelay    time.Duration
	RequestDelay time.Duration
}

// Transcripts fetches video transcripts by scraping the caption track list
// out of the watch page player response and downloading the timedtext XML
// behind it. There is no official API for this, the embedded JSON may
// change without notice.
type Transcripts struct {
	watchBase    string
	httpClient   *http.Client
	languages    []string
	translateTo  string
	maxAttempts  int
	baseDelay    time.Duration
	requestDelay time.Duration
	sleep        func(time.Duration)
	logger       *slog.Logger
}

func NewTranscripts(cfg TranscriptConfig, logger *slog.Logger) *Transcripts {
	if cfg.WatchBase == "" {
		cfg.WatchBase = "https://www.youtube.com"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"es", "es-419", "es-ES", "es-MX", "es-AR"}
	}
	if cfg.TranslateTo == "" {
		cfg.TranslateTo = "es"
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = time.Second
	}

	return &Transcripts{
		watchBase:    cfg.WatchBase,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		languages:    cfg.Languages,
		translateTo:  cfg.TranslateTo,
		maxAttempts:  cfg.MaxAttempts,
		baseDelay:    cfg.BaseDelay,
		requestDelay: cfg.RequestDelay,
		sleep:        time.Sleep,
		logger:       logger,
	}
}

// Fetch returns the transcript text for a video. Only transient rate-limit
// failures are retried, with a linearly growing backoff. Terminal
// conditions (disabled transcripts, unavailable video, no usable track)
// come back immediately.
func (t *Transcripts) Fetch(ctx context.Context, videoID model.YoutubeVideoID) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		t.sleep(t.requestDelay)
		text, err := t.fetchOnce(ctx, videoID)
		if err == nil {
			return text, nil
		}
		if !isTransient(err) {
			return "", err
		}
		lastErr = err
		if attempt < t.maxAttempts {
			backoff := time.Duration(attempt) * t.baseDelay
			t.logger.Warn("transcript fetch rate limited, backing off", "video", videoID, "attempt", attempt, "backoff", backoff)
			t.sleep(backoff)
		}
	}

	return "", fmt.Errorf("retries exhausted: %w", lastErr)
}

func (t *Transcripts) fetchOnce(ctx context.Context, videoID model.YoutubeVideoID) (string, error) {
	tracks, err := t.listTracks(ctx, videoID)
	if err != nil {
		return "", err
	}
	track, translate := pickTrack(tracks, t.languages)
	if track == nil {
		return "", ErrNoTranscript
	}

	trackURL := track.BaseURL
	if translate {
		sep := "?"
		if strings.Contains(trackURL, "?") {
			sep = "&"
		}
		trackURL += sep + "tlang=" + t.translateTo
	}
	text, err := t.fetchTimedText(ctx, trackURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoTranscript
	}

	return text, nil
}

type captionTrack struct {
	BaseURL        string `json:"baseUrl"`
	LanguageCode   string `json:"languageCode"`
	Kind           string `json:"kind"`
	IsTranslatable bool   `json:"isTranslatable"`
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

const playerResponseMarker = "ytInitialPlayerResponse = "

// listTracks scrapes ytInitialPlayerResponse from the watch page and
// returns the available caption tracks.
func (t *Transcripts) listTracks(ctx context.Context, videoID model.YoutubeVideoID) ([]captionTrack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.watchBase+"/watch?v="+string(videoID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("watch page: status 429 too many requests")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(playerResponseMarker))
	if idx < 0 {
		return nil, fmt.Errorf("player response not found in watch page: %w", ErrNoTranscript)
	}
	raw := extractJSONObject(body[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, fmt.Errorf("malformed player response: %w", ErrNoTranscript)
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	if player.PlayabilityStatus != nil && player.PlayabilityStatus.Status == "ERROR" {
		return nil, fmt.Errorf("%w: %s", ErrVideoUnavailable, player.PlayabilityStatus.Reason)
	}
	if player.Captions == nil {
		return nil, ErrTranscriptsDisabled
	}

	return player.Captions.Renderer.CaptionTracks, nil
}

// pickTrack walks the language waterfall: manually authored Spanish
// variant, auto-generated Spanish variant, English translated to Spanish,
// then any translatable track translated to Spanish.
func pickTrack(tracks []captionTrack, langs []string) (*captionTrack, bool) {
	for _, lang := range langs {
		for i, track := range tracks {
			if track.LanguageCode == lang && track.Kind != "asr" {
				return &tracks[i], false
			}
		}
	}
	for _, lang := range langs {
		for i, track := range tracks {
			if track.LanguageCode == lang {
				return &tracks[i], false
			}
		}
	}
	for i, track := range tracks {
		if strings.HasPrefix(track.LanguageCode, "en") && track.IsTranslatable {
			return &tracks[i], true
		}
	}
	for i, track := range tracks {
		if track.IsTranslatable {
			return &tracks[i], true
		}
	}

	return nil, false
}

type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Lines   []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

func (t *Transcripts) fetchTimedText(ctx context.Context, trackURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("fetch timedtext: status 429 too many requests")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch timedtext: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}

	return strings.TrimSpace(sb.String()), nil
}

// isTransient reports whether an error looks like an upstream rate limit.
// Anything else is terminal and must not be retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"too many requests", "429", "rate limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// extractJSONObject returns the balanced JSON object at the start of data,
// skipping braces inside string literals.
func extractJSONObject(data []byte) []byte {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i, c := range data {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return data[:i+1]
			}
		}
	}

	return nil
}
