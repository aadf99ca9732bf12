package players

import (
	"context"
	"time"

	"github.com/m1k1o/go-portal/internal/store"
)

type Config struct {
	ListTTL   time.Duration // how long is player list cached
	PlayerTTL time.Duration // how long is single player cached

	FrameCount    int   // default number of captured cover candidates
	MaxFrameCount int   // upper bound of requested cover candidates
	MaxCoverSize  int64 // in bytes
}

func (c Config) withDefaultValues() Config {
	if c.ListTTL == 0 {
		c.ListTTL = 10 * time.Second
	}
	if c.PlayerTTL == 0 {
		c.PlayerTTL = time.Minute
	}
	if c.FrameCount == 0 {
		c.FrameCount = 4
	}
	if c.MaxFrameCount == 0 {
		c.MaxFrameCount = 16
	}
	if c.MaxCoverSize == 0 {
		c.MaxCoverSize = 5 << 20
	}
	return c
}

type Store interface {
	List(ctx context.Context, withCover bool) ([]store.Player, error)
	Get(ctx context.Context, id int64) (*store.Player, error)
	GetByPID(ctx context.Context, pId string) (*store.Player, error)
	Create(ctx context.Context, in store.PlayerInput) (*store.Player, error)
	Update(ctx context.Context, id int64, in store.PlayerInput) (*store.Player, error)
	Delete(ctx context.Context, id int64) error
	SetCover(ctx context.Context, id int64, image []byte) error
	GetCover(ctx context.Context, id int64) ([]byte, error)
}

type playerResponse struct {
	store.Player
	CoverImageBase64 *string `json:"coverImageBase64,omitempty"`
}

type messageResponse struct {
	Message  string `json:"message"`
	FileSize int    `json:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

type coverResponse struct {
	CoverImageBase64 string `json:"coverImageBase64"`
}

type frameResponse struct {
	PreviewID string  `json:"previewId"`
	URL       string  `json:"url"`
	Timestamp float64 `json:"timestamp"`
	Index     int     `json:"index"`
}

type framesResponse struct {
	Frames []frameResponse `json:"frames"`
}

type selectCoverRequest struct {
	PreviewID string `json:"previewId"`
}
