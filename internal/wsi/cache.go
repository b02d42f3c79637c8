package wsi

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// ImageCache provides thread-safe caching of decoded images keyed by file path.
//
// Once an image is loaded, subsequent Load() calls for the same path return
// the cached copy without disk I/O. Slide levels can be hundreds of megabytes
// decoded, so long-running processes should Evict() slides they are done with.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// The image is cached using the exact path string provided. Different paths
// to the same file result in separate cache entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.Get(path); ok {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	c.Put(path, img)
	return img, nil
}

// Get returns a cached image without touching disk.
func (c *ImageCache) Get(key string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	return img, ok
}

// Put stores an image under key. Used for derived images such as synthesized
// pyramid levels.
func (c *ImageCache) Put(key string, img image.Image) {
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache. Unknown keys are ignored.
func (c *ImageCache) Evict(key string) {
	c.mu.Lock()
	delete(c.images, key)
	c.mu.Unlock()
}
