package model

import (
	"cmp"
	"errors"
	"slices"
	"strconv"
	"strings"
)

// SortOption selects the ordering of a catalog listing.
type SortOption string

const (
	SortNewest     SortOption = "newest"
	SortPriceAsc   SortOption = "price_asc"
	SortPriceDesc  SortOption = "price_desc"
	SortMostViewed SortOption = "most_viewed"
	SortLongest    SortOption = "longest"
)

// DefaultSortOption is used when a listing does not request an order.
const DefaultSortOption = SortNewest

var ErrInvalidSortOption = errors.New("invalid sort option")

// ParseSortOption maps a query value to a SortOption.
// An empty value selects DefaultSortOption.
func ParseSortOption(s string) (SortOption, error) {
	switch opt := SortOption(strings.ToLower(strings.TrimSpace(s))); opt {
	case "":
		return DefaultSortOption, nil
	case SortNewest, SortPriceAsc, SortPriceDesc, SortMostViewed, SortLongest:
		return opt, nil
	default:
		return "", ErrInvalidSortOption
	}
}

func (o SortOption) String() string {
	return string(o)
}

// SortVideos orders videos in place. The sort is stable, so ties keep the
// order in which the records were fetched.
func SortVideos(videos []*Video, opt SortOption) {
	var less func(a, b *Video) int

	switch opt {
	case SortPriceAsc:
		less = func(a, b *Video) int { return cmp.Compare(a.PriceCents, b.PriceCents) }
	case SortPriceDesc:
		less = func(a, b *Video) int { return cmp.Compare(b.PriceCents, a.PriceCents) }
	case SortMostViewed:
		less = func(a, b *Video) int { return cmp.Compare(b.Views, a.Views) }
	case SortLongest:
		less = func(a, b *Video) int { return cmp.Compare(b.DurationSeconds(), a.DurationSeconds()) }
	default:
		less = func(a, b *Video) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}

	slices.SortStableFunc(videos, less)
}

// FilterVideos returns the videos whose title or description contains query,
// ignoring case. The input order is preserved.
func FilterVideos(videos []*Video, query string) []*Video {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return videos
	}

	out := make([]*Video, 0, len(videos))
	for _, v := range videos {
		if strings.Contains(strings.ToLower(v.Title), q) ||
			strings.Contains(strings.ToLower(v.Description), q) {
			out = append(out, v)
		}
	}
	return out
}

// MaxDurationSeconds caps parsed durations; longer values are rejected.
const MaxDurationSeconds = 1000 * 3600

// ParseDuration converts "MM:SS" or "HH:MM:SS" into total seconds.
// Values above MaxDurationSeconds are treated as unparsable.
func ParseDuration(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		if i > 0 && n >= 60 {
			return 0, false
		}
		if total > (MaxDurationSeconds-n)/60 {
			return 0, false
		}
		total = total*60 + n
	}
	if total > MaxDurationSeconds {
		return 0, false
	}
	return total, true
}
