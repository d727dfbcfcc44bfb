package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video represents a catalog record for a paid video.
// VideoKey and ThumbnailKey name the backing binaries in object storage.
type Video struct {
	ID           uuid.UUID
	Title        string
	Description  string
	PriceCents   int64
	Duration     string
	VideoKey     string
	ThumbnailKey string
	IsPurchased  bool
	Views        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrTitleTooLong    = errors.New("title exceeds maximum length of 255 characters")
	ErrNegativePrice   = errors.New("price cannot be negative")
	ErrInvalidDuration = errors.New("duration must be MM:SS or HH:MM:SS")
)

const maxTitleLength = 255

// VideoInput carries the mutable fields of a catalog record.
type VideoInput struct {
	Title        string
	Description  string
	PriceCents   int64
	Duration     string
	VideoKey     string
	ThumbnailKey string
}

// Validate checks the input against catalog constraints.
func (in VideoInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if in.PriceCents < 0 {
		return ErrNegativePrice
	}
	if in.Duration != "" {
		if _, ok := ParseDuration(in.Duration); !ok {
			return ErrInvalidDuration
		}
	}
	return nil
}

// NewVideo creates a new catalog record from validated input.
func NewVideo(in VideoInput) (*Video, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	v := &Video{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.apply(in)
	return v, nil
}

// Apply overwrites the mutable fields of the record.
func (v *Video) Apply(in VideoInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	v.apply(in)
	v.UpdatedAt = time.Now()
	return nil
}

func (v *Video) apply(in VideoInput) {
	v.Title = strings.TrimSpace(in.Title)
	v.Description = in.Description
	v.PriceCents = in.PriceCents
	v.Duration = in.Duration
	v.VideoKey = in.VideoKey
	v.ThumbnailKey = in.ThumbnailKey
}

// Clone returns an independent copy of the record.
func (v *Video) Clone() *Video {
	c := *v
	return &c
}

// DurationSeconds returns the parsed duration, or 0 when it cannot be parsed.
func (v *Video) DurationSeconds() int {
	secs, _ := ParseDuration(v.Duration)
	return secs
}

// CloneVideos copies every record so callers cannot mutate a cached snapshot.
func CloneVideos(videos []*Video) []*Video {
	out := make([]*Video, len(videos))
	for i, v := range videos {
		out[i] = v.Clone()
	}
	return out
}
