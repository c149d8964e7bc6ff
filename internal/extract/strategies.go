package extract

import (
	"context"
	"errors"
	"image"

	"native-thumbnail/internal/pathutil"
)

// Strategy names, also used as metric labels.
const (
	NameCache   = "cache"
	NameFactory = "factory"
	NameLive    = "live"
)

// CacheFlags control a CacheService lookup.
type CacheFlags uint8

const (
	// FlagExtract regenerates the thumbnail when no usable entry exists.
	FlagExtract CacheFlags = 1 << iota
	// FlagForceExtraction ignores any cached entry and regenerates from source.
	FlagForceExtraction
	// FlagScaleToRequestedSize scales the result exactly to the requested size.
	FlagScaleToRequestedSize
)

// Has reports whether all bits of f2 are set in f.
func (f CacheFlags) Has(f2 CacheFlags) bool {
	return f&f2 == f2
}

// CacheService is a shared thumbnail cache.
type CacheService interface {
	GetThumbnail(ctx context.Context, path string, size int, flags CacheFlags) (*Bitmap, error)
}

// ImageFactory renders a scaled preview of a file. It must return an error
// rather than a generic icon when it cannot.
type ImageFactory interface {
	Thumbnail(ctx context.Context, path string, edge int) (image.Image, error)
}

// CacheStrategy asks the shared cache for a freshly extracted thumbnail,
// bypassing any stale entry, scaled exactly to the requested edge.
type CacheStrategy struct {
	Cache CacheService
}

// Name implements Strategy.
func (CacheStrategy) Name() string { return NameCache }

// Extract implements Strategy.
func (s CacheStrategy) Extract(ctx context.Context, req Request) (*Bitmap, error) {
	if s.Cache == nil {
		return nil, &Error{Kind: KindFailed, Code: "no_cache", Err: errors.New("thumbnail cache not configured")}
	}
	return s.Cache.GetThumbnail(ctx, req.Path.String(), req.Edge,
		FlagExtract|FlagForceExtraction|FlagScaleToRequestedSize)
}

// FactoryStrategy renders directly through an ImageFactory. Tools behind the
// factory reject extended-length paths, so long paths are passed in their
// short form, or fail.
type FactoryStrategy struct {
	Factory ImageFactory
}

// Name implements Strategy.
func (FactoryStrategy) Name() string { return NameFactory }

// Extract implements Strategy.
func (s FactoryStrategy) Extract(ctx context.Context, req Request) (*Bitmap, error) {
	if s.Factory == nil {
		return nil, &Error{Kind: KindFailed, Code: "no_factory", Err: errors.New("image factory not configured")}
	}
	path, err := pathutil.ForLegacyAPI(req.Path.String())
	if err != nil {
		return nil, &Error{Kind: KindFailed, Code: "path_too_long", Err: err}
	}
	img, err := s.Factory.Thumbnail(ctx, path, req.Edge)
	if err != nil {
		return nil, err
	}
	return NewBitmap(img, nil), nil
}

// LiveStrategy retrieves a thumbnail asynchronously from the shared cache,
// accepting an up-to-date cached entry. The lookup runs on its own goroutine;
// the caller waits for it or for ctx.
type LiveStrategy struct {
	Cache CacheService
}

// Name implements Strategy.
func (LiveStrategy) Name() string { return NameLive }

type liveResult struct {
	bmp *Bitmap
	err error
}

// Extract implements Strategy.
func (s LiveStrategy) Extract(ctx context.Context, req Request) (*Bitmap, error) {
	if s.Cache == nil {
		return nil, &Error{Kind: KindFailed, Code: "no_cache", Err: errors.New("thumbnail cache not configured")}
	}

	results := make(chan liveResult, 1)
	go func() {
		bmp, err := s.Cache.GetThumbnail(ctx, req.Path.String(), req.Edge, FlagExtract|FlagScaleToRequestedSize)
		results <- liveResult{bmp: bmp, err: err}
	}()

	select {
	case r := <-results:
		return r.bmp, r.err
	case <-ctx.Done():
		// Nobody will take ownership of a late result.
		go func() {
			if r := <-results; r.bmp != nil {
				r.bmp.Release()
			}
		}()
		return nil, ctx.Err()
	}
}
