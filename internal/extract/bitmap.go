package extract

import (
	"image"
	"sync"
	"sync/atomic"
)

// Bitmap is an owned decoded image. Whoever holds it must call Release exactly
// once; further calls are no-ops. A Bitmap is not safe for concurrent use by
// more than one owner.
type Bitmap struct {
	img      image.Image
	cleanup  func()
	once     sync.Once
	released atomic.Bool
}

// NewBitmap wraps img. cleanup, if non-nil, runs once on Release.
func NewBitmap(img image.Image, cleanup func()) *Bitmap {
	return &Bitmap{img: img, cleanup: cleanup}
}

// Image returns the decoded image, or nil after Release.
func (b *Bitmap) Image() image.Image {
	if b == nil || b.released.Load() {
		return nil
	}
	return b.img
}

// Bounds returns the image bounds, or the empty rectangle after Release.
func (b *Bitmap) Bounds() image.Rectangle {
	if img := b.Image(); img != nil {
		return img.Bounds()
	}
	return image.Rectangle{}
}

// Release drops the image and runs the cleanup function. Only the first call
// has any effect.
func (b *Bitmap) Release() {
	if b == nil {
		return
	}
	b.once.Do(func() {
		b.released.Store(true)
		b.img = nil
		if b.cleanup != nil {
			b.cleanup()
		}
	})
}

// Released reports whether Release has been called.
func (b *Bitmap) Released() bool {
	return b != nil && b.released.Load()
}
