package wsi

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-overlay/internal/imaging"
)

// ErrLevelNotFound is returned when a slide has no image for the requested level.
var ErrLevelNotFound = errors.New("slide level not found")

// maxSynthesizedLevel bounds the levels an ImageSlide reports.
const maxSynthesizedLevel = 16

var levelFilePattern = regexp.MustCompile(`^level_(\d+)\.(png|jpe?g|gif|tiff?|bmp)$`)

// Slide is the accessor a renderer needs: a name, a resize factor and a
// leveled image loader.
type Slide interface {
	Name() string
	Scale() float64
	Level(level int) (image.Image, error)
}

// LevelLister is implemented by slides that can enumerate their levels.
type LevelLister interface {
	Levels() ([]LevelInfo, error)
}

// Releaser is implemented by slides that hold images in a shared cache.
type Releaser interface {
	Release()
}

// LevelInfo describes one level of a slide.
type LevelInfo struct {
	Level  int    `json:"level"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"path,omitempty"`
}

// Options controls how Open builds a slide.
type Options struct {
	// Name overrides the slide name. Defaults to the base name of the path
	// without its extension.
	Name string

	// Scale is the resize factor applied to level images. Zero means 1.0.
	Scale float64

	// Cache is shared between slides. A private cache is created when nil.
	Cache *ImageCache
}

func (o Options) withDefaults(path string) Options {
	if o.Name == "" {
		base := filepath.Base(path)
		o.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if o.Scale == 0 {
		o.Scale = 1.0
	}
	if o.Cache == nil {
		o.Cache = NewImageCache()
	}
	return o
}

// Open returns a PyramidSlide for a directory and an ImageSlide for a file.
func Open(path string, opts Options) (Slide, error) {
	if opts.Scale < 0 {
		return nil, fmt.Errorf("slide scale must be positive, got %g", opts.Scale)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slide: %w", err)
	}
	opts = opts.withDefaults(path)

	if stat.IsDir() {
		return OpenPyramid(path, opts)
	}
	return &ImageSlide{path: path, name: opts.Name, scale: opts.Scale, cache: opts.Cache}, nil
}

// PyramidSlide is a slide stored as one file per level.
type PyramidSlide struct {
	dir    string
	name   string
	scale  float64
	cache  *ImageCache
	levels map[int]string
}

// OpenPyramid scans dir for level_<n>.<ext> files.
func OpenPyramid(dir string, opts Options) (*PyramidSlide, error) {
	opts = opts.withDefaults(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read slide directory: %w", err)
	}

	levels := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := levelFilePattern.FindStringSubmatch(strings.ToLower(e.Name()))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if existing, ok := levels[n]; ok {
			return nil, fmt.Errorf("slide %s has two files for level %d: %s and %s",
				opts.Name, n, filepath.Base(existing), e.Name())
		}
		levels[n] = filepath.Join(dir, e.Name())
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no level_<n> images found in %s", dir)
	}

	return &PyramidSlide{
		dir:    dir,
		name:   opts.Name,
		scale:  opts.Scale,
		cache:  opts.Cache,
		levels: levels,
	}, nil
}

// Name returns the slide name.
func (s *PyramidSlide) Name() string { return s.name }

// Scale returns the resize factor applied to level images.
func (s *PyramidSlide) Scale() float64 { return s.scale }

// Level loads the image stored for level.
func (s *PyramidSlide) Level(level int) (image.Image, error) {
	path, ok := s.levels[level]
	if !ok {
		return nil, fmt.Errorf("%w: %s level %d", ErrLevelNotFound, s.name, level)
	}
	return s.cache.Load(path)
}

// Levels lists the stored levels in ascending order. Dimensions are read
// from file headers without decoding pixel data.
func (s *PyramidSlide) Levels() ([]LevelInfo, error) {
	nums := make([]int, 0, len(s.levels))
	for n := range s.levels {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	infos := make([]LevelInfo, 0, len(nums))
	for _, n := range nums {
		w, h, err := decodeDimensions(s.levels[n])
		if err != nil {
			return nil, err
		}
		infos = append(infos, LevelInfo{Level: n, Width: w, Height: h, Path: s.levels[n]})
	}
	return infos, nil
}

// Release evicts the slide's images from the shared cache.
func (s *PyramidSlide) Release() {
	for _, path := range s.levels {
		s.cache.Evict(path)
	}
}

// ImageSlide is a slide backed by one base image. Level n is the base image
// area-downsampled by 2^n.
type ImageSlide struct {
	path  string
	name  string
	scale float64
	cache *ImageCache
}

// Name returns the slide name.
func (s *ImageSlide) Name() string { return s.name }

// Scale returns the resize factor applied to level images.
func (s *ImageSlide) Scale() float64 { return s.scale }

// Level returns the base image downsampled to level. Synthesized levels are cached.
func (s *ImageSlide) Level(level int) (image.Image, error) {
	if level < 0 || level > maxSynthesizedLevel {
		return nil, fmt.Errorf("%w: %s level %d", ErrLevelNotFound, s.name, level)
	}

	base, err := s.cache.Load(s.path)
	if err != nil {
		return nil, err
	}
	if level == 0 {
		return base, nil
	}

	key := s.levelKey(level)
	if img, ok := s.cache.Get(key); ok {
		return img, nil
	}

	img := imaging.ResizeByFactor(base, imaging.LevelFactor(level))
	s.cache.Put(key, img)
	return img, nil
}

// Levels lists every level whose synthesized image is at least one pixel wide and tall.
func (s *ImageSlide) Levels() ([]LevelInfo, error) {
	w, h, err := decodeDimensions(s.path)
	if err != nil {
		return nil, err
	}

	var infos []LevelInfo
	for n := 0; n <= maxSynthesizedLevel; n++ {
		f := imaging.LevelFactor(n)
		lw, lh := imaging.ScaledSize(w, h, f)
		if n > 0 && (float64(w)*f < 1 || float64(h)*f < 1) {
			break
		}
		infos = append(infos, LevelInfo{Level: n, Width: lw, Height: lh})
	}
	if len(infos) > 0 {
		infos[0].Path = s.path
	}
	return infos, nil
}

// Release evicts the base image and any synthesized levels from the cache.
func (s *ImageSlide) Release() {
	s.cache.Evict(s.path)
	for n := 1; n <= maxSynthesizedLevel; n++ {
		s.cache.Evict(s.levelKey(n))
	}
}

func (s *ImageSlide) levelKey(level int) string {
	return fmt.Sprintf("%s#level=%d", s.path, level)
}

func decodeDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
