package model

import "strings"

// AssetKind identifies which folder of the bucket an object lives in.
type AssetKind string

const (
	AssetVideo     AssetKind = "video"
	AssetThumbnail AssetKind = "thumbnail"
)

// Folder returns the bucket folder for the asset kind.
func (k AssetKind) Folder() string {
	if k == AssetThumbnail {
		return "thumbnails"
	}
	return "videos"
}

func (k AssetKind) String() string {
	return string(k)
}

var assetFolders = []string{"videos/", "thumbnails/"}

// ObjectKey returns the full object key for an identifier.
// Identifiers that already carry a known folder prefix are returned unchanged.
func ObjectKey(kind AssetKind, identifier string) string {
	id := strings.TrimLeft(strings.TrimSpace(identifier), "/")
	if id == "" {
		return ""
	}
	for _, prefix := range assetFolders {
		if strings.HasPrefix(id, prefix) {
			return id
		}
	}
	return kind.Folder() + "/" + id
}

// SignedURL is the outcome of resolving an asset identifier.
// Fallback is set when the URL was constructed directly because signing failed.
type SignedURL struct {
	URL      string
	Fallback bool
}
