package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/LautaroIbanez/Pots/fetcher"
	"github.com/LautaroIbanez/Pots/handler"
	"github.com/LautaroIbanez/Pots/storage"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var defaultChannels = []string{
	"https://www.youtube.com/@RavaBursatil",
	"https://www.youtube.com/@Daniel_Pesalovo",
	"https://www.youtube.com/@somosbullmarket",
	"https://www.youtube.com/@JoseLuisCavatv",
	"https://www.youtube.com/@ClaveBursatilTV",
	"https://www.youtube.com/c/Jos%C3%A9LuisC%C3%A1rpatos",
	"https://www.youtube.com/@leanzicca",
	"https://www.youtube.com/@MundoDinerovideos",
	"https://www.youtube.com/@salvador.distefano",
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env file", "error", err)
	}

	channels := defaultChannels
	if raw := getParam("CHANNEL_URLS", ""); raw != "" {
		channels = []string{}
		for _, url := range strings.Split(raw, ",") {
			if url = strings.TrimSpace(url); url != "" {
				channels = append(channels, url)
			}
		}
	}

	maxVideos, err := strconv.Atoi(getParam("MAX_VIDEOS_PER_CHANNEL", "3"))
	if err != nil || maxVideos < 1 {
		logger.Error("invalid max videos per channel")
		os.Exit(1)
	}
	minDuration, err := strconv.Atoi(getParam("MIN_VIDEO_DURATION_SECONDS", strconv.Itoa(fetcher.DefaultMinDuration)))
	if err != nil {
		logger.Error("invalid minimum video duration")
		os.Exit(1)
	}

	dataDir := getParam("DATA_DIR", "data")
	videoRepo := storage.NewFileVideoRepository(dataDir+"/summaries.json", logger)
	policy := fetcher.NewDurationPolicy(minDuration, nil, dataDir+"/channel_durations.json", logger)

	ytAPIKey := getParam("YOUTUBE_API_KEY", "")
	ytClient, err := youtube.NewService(ctx, option.WithAPIKey(ytAPIKey))
	if err != nil {
		logger.Error("unable to create youtube service", "error", err)
		os.Exit(1)
	}
	yt := fetcher.NewYoutube(ytClient, ytAPIKey != "", maxVideos, logger)

	transcripts := fetcher.NewTranscripts(fetcher.TranscriptConfig{}, logger)
	summarizer := fetcher.NewOpenAISummarizer(getParam("OPENAI_API_KEY", ""))

	fetch := fetcher.NewFetch(channels, policy, yt, transcripts, summarizer, videoRepo, logger)

	port, err := strconv.Atoi(getParam("API_PORT", "8080"))
	if err != nil {
		logger.Error("invalid port", "error", err)
		os.Exit(1)
	}
	go http.ListenAndServe(fmt.Sprintf(":%d", port), handler.NewServer(fetch, logger))
	logger.Info("http server started", "port", port, "channels", len(channels))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)
	<-done

	logger.Info("service stopped")
}

func getParam(param, def string) string {
	if val, ok := os.LookupEnv(param); ok {
		return val
	}
	return def
}
