package storage

import (
	"errors"

	"github.com/LautaroIbanez/Pots/model"
)

var ErrNotFound = errors.New("video not found")

type VideoRepository interface {
	Get(id model.YoutubeVideoID) (*model.Video, error)
	Save(video *model.Video) error
	FindAll() ([]*model.Video, error)
}
