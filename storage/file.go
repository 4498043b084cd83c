package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/LautaroIbanez/Pots/model"
)

// FileVideoRepository keeps all records in a single JSON snapshot file,
// keyed by video id. Every operation loads the full file and Save rewrites
// it completely. There is no locking, a single refresh process is assumed
// to run to completion before the next one starts.
type FileVideoRepository struct {
	path   string
	now    func() time.Time
	logger *slog.Logger
}

func NewFileVideoRepository(path string, logger *slog.Logger) *FileVideoRepository {
	return &FileVideoRepository{
		path:   path,
		now:    time.Now,
		logger: logger,
	}
}

func (r *FileVideoRepository) Get(id model.YoutubeVideoID) (*model.Video, error) {
	videos, err := r.load()
	if err != nil {
		return nil, err
	}
	video, ok := videos[string(id)]
	if !ok {
		return nil, ErrNotFound
	}

	return video, nil
}

// Save writes the record into the snapshot, stamping GeneratedAt with the
// current time when the record does not carry one yet.
func (r *FileVideoRepository) Save(video *model.Video) error {
	videos, err := r.load()
	if err != nil {
		return err
	}
	if video.GeneratedAt == "" {
		video.GeneratedAt = r.now().Format(time.RFC3339)
	}
	videos[video.VideoID] = video

	return r.store(videos)
}

func (r *FileVideoRepository) FindAll() ([]*model.Video, error) {
	videos, err := r.load()
	if err != nil {
		return nil, err
	}
	all := make([]*model.Video, 0, len(videos))
	for _, video := range videos {
		all = append(all, video)
	}

	return all, nil
}

// load returns the snapshot contents. A missing file is an empty store. A
// file that cannot be parsed is also an empty store, logged, so that one
// corrupted write never takes the whole service down.
func (r *FileVideoRepository) load() (map[string]*model.Video, error) {
	data, err := os.ReadFile(r.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return map[string]*model.Video{}, nil
	case err != nil:
		return nil, fmt.Errorf("could not read summary file: %w", err)
	}

	videos := map[string]*model.Video{}
	if err := json.Unmarshal(data, &videos); err != nil {
		r.logger.Warn("summary file is malformed, starting empty", "path", r.path, "error", err)
		return map[string]*model.Video{}, nil
	}

	return videos, nil
}

func (r *FileVideoRepository) store(videos map[string]*model.Video) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("could not create data dir: %w", err)
	}
	data, err := json.MarshalIndent(videos, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal summaries: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("could not write summary file: %w", err)
	}

	return nil
}
