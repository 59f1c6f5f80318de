// Package imagefile implements a frame source that replays a directory of encoded images in
// name order.
package imagefile

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"go.viam.com/rover/components/camera"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/utils"
)

var _ = camera.FrameSource(&Source{})

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// A Source reads one file per frame. Decoded frames are drawn into pooled grayscale buffers that
// return to the pool on release.
type Source struct {
	mu     sync.Mutex
	files  []string
	next   int
	loop   bool
	closed bool

	pool   sync.Pool
	clk    clock.Clock
	origin time.Time
	logger logging.Logger
}

// NewSource lists the image files under conf.Path. It fails if there are none.
func NewSource(conf *camera.Config, clk clock.Clock, logger logging.Logger) (*Source, error) {
	entries, err := os.ReadDir(conf.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list frames in %q", conf.Path)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(conf.Path, entry.Name()))
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no image files found in %q", conf.Path)
	}
	sort.Strings(files)

	if clk == nil {
		clk = clock.New()
	}
	logger.Debugw("replaying frames", "dir", conf.Path, "count", len(files), "loop", conf.Loop)
	return &Source{
		files:  files,
		loop:   conf.Loop,
		clk:    clk,
		origin: clk.Now(),
		logger: logger,
	}, nil
}

// NextFrame decodes the next file. Running out of files, or a file vanishing, is an acquisition
// failure; a file that will not decode is a decode failure.
func (s *Source) NextFrame(ctx context.Context) (camera.Frame, func(), error) {
	path, err := s.advance()
	if err != nil {
		return camera.Frame{}, camera.NoRelease, err
	}
	if _, err := os.Stat(path); err != nil {
		return camera.Frame{}, camera.NoRelease, errors.Wrapf(camera.ErrAcquisition, "%s: %v", path, err)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return camera.Frame{}, camera.NoRelease, errors.Wrapf(camera.ErrDecode, "%s: %v", path, err)
	}

	gray := s.buffer(img.Bounds().Dx(), img.Bounds().Dy())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	frame := camera.Frame{Gray: gray, TimestampMs: utils.MillisSince(s.clk, s.origin)}

	var once sync.Once
	return frame, func() { once.Do(func() { s.pool.Put(gray) }) }, nil
}

func (s *Source) advance() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errors.Wrap(camera.ErrAcquisition, "source is closed")
	}
	if s.next >= len(s.files) {
		if !s.loop {
			return "", errors.Wrap(camera.ErrAcquisition, "no more frames")
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	return path, nil
}

func (s *Source) buffer(width, height int) *image.Gray {
	if pooled, ok := s.pool.Get().(*image.Gray); ok {
		if pooled.Bounds().Dx() == width && pooled.Bounds().Dy() == height {
			return pooled
		}
	}
	return image.NewGray(image.Rect(0, 0, width, height))
}

// Close makes every later NextFrame fail.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
