package store

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("player not found")
	ErrDuplicatePID = errors.New("player id already exists")
	ErrInvalid      = errors.New("name, id and url are required")
)

type Player struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PID          string    `json:"pId"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	CoverURL     string    `json:"coverUrl"`
	Announcement string    `json:"announcement"`
	HasCover     bool      `json:"hasCover"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// only loaded on request
	CoverImage []byte `json:"-"`
}

// PlayerInput holds the editable fields of a player.
type PlayerInput struct {
	Name         string `json:"name" yaml:"name"`
	PID          string `json:"pId" yaml:"pId"`
	Description  string `json:"description" yaml:"description"`
	URL          string `json:"url" yaml:"url"`
	CoverURL     string `json:"coverUrl" yaml:"coverUrl"`
	Announcement string `json:"announcement" yaml:"announcement"`
}

func (in PlayerInput) Normalize() PlayerInput {
	in.Name = strings.TrimSpace(in.Name)
	in.PID = strings.TrimSpace(in.PID)
	in.URL = strings.TrimSpace(in.URL)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	return in
}

func (in PlayerInput) Validate() error {
	if in.Name == "" || in.PID == "" || in.URL == "" {
		return ErrInvalid
	}
	return nil
}
