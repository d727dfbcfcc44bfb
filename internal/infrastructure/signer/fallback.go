package signer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hszk-dev/vidshop/internal/domain/model"
)

// FallbackConfig describes the public layout of the bucket used when signing fails.
type FallbackConfig struct {
	Bucket string
	Region string
	Domain string // e.g. "amazonaws.com" or "wasabisys.com"
}

// FallbackURL builds the direct object URL for an identifier:
//
//	https://{bucket}.s3.{region}.{domain}/{folder}/{identifier}
//
// The folder comes from the identifier when it already carries one,
// otherwise from kind.
func FallbackURL(cfg FallbackConfig, kind model.AssetKind, identifier string) string {
	key := model.ObjectKey(kind, identifier)
	return fmt.Sprintf("https://%s.s3.%s.%s/%s", cfg.Bucket, cfg.Region, cfg.Domain, escapeKey(key))
}

// escapeKey escapes each path segment of an object key, keeping the separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
