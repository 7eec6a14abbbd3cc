package chat

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const (
	assetPrefix   = "/assets/"
	FallbackImage = "/assets/fallback-image.png"
)

// ImageProber checks whether an asset can be loaded.
type ImageProber interface {
	ImageAvailable(ctx context.Context, path string) bool
}

// ImagePath is the stable display path of a bare image name:
// "chart" becomes "/assets/chart.png".
func ImagePath(name string) string {
	if name == "" {
		return ""
	}
	if !strings.HasSuffix(strings.ToLower(name), ".png") {
		name += ".png"
	}
	return assetPrefix + strings.TrimPrefix(name, "/")
}

// ImageRef returns the path to display for name at the given render time:
// the asset path with a ?t=<unix millis> cache buster, or the fallback
// image when the asset cannot be loaded. prober may be nil.
func ImageRef(ctx context.Context, prober ImageProber, name string, at time.Time) string {
	path := ImagePath(name)
	if path == "" {
		return ""
	}
	if prober != nil && !prober.ImageAvailable(ctx, path) {
		return FallbackImage
	}
	return path + "?t=" + strconv.FormatInt(at.UnixMilli(), 10)
}
