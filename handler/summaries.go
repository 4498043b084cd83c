package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/LautaroIbanez/Pots/model"
)

// Refresher is the pipeline surface the HTTP layer consumes.
type Refresher interface {
	RefreshAll(ctx context.Context) []model.ChannelVideos
	CachedSummaries() ([]model.ChannelVideos, error)
}

type SummariesAPI struct {
	refresher Refresher
	logger    *slog.Logger
}

func NewSummariesAPI(refresher Refresher, logger *slog.Logger) *SummariesAPI {
	return &SummariesAPI{
		refresher: refresher,
		logger:    logger,
	}
}

func (s *SummariesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && sub == "":
		s.List(w, r)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the summaries api", r.Method, sub))
	}
}

func (s *SummariesAPI) List(w http.ResponseWriter, r *http.Request) {
	groups, err := s.refresher.CachedSummaries()
	if err != nil {
		s.logger.Error("could not list summaries", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "could not list summaries", err)
		return
	}
	writeGroups(w, groups)
}

type RefreshAPI struct {
	refresher Refresher
	logger    *slog.Logger
}

func NewRefreshAPI(refresher Refresher, logger *slog.Logger) *RefreshAPI {
	return &RefreshAPI{
		refresher: refresher,
		logger:    logger,
	}
}

// ServeHTTP runs a full refresh. Per-video and per-channel failures show up
// as placeholder summaries in the payload, never as an error status.
func (ref *RefreshAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, _ := ShiftPath(r.URL.Path)
	if r.Method != http.MethodPost || sub != "" {
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the refresh api", r.Method, sub))
		return
	}

	groups := ref.refresher.RefreshAll(r.Context())
	writeGroups(w, groups)
}

func writeGroups(w http.ResponseWriter, groups []model.ChannelVideos) {
	if groups == nil {
		groups = []model.ChannelVideos{}
	}
	body, err := json.Marshal(groups)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not marshal response", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
