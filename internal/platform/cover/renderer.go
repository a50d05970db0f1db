// Package cover renders cover thumbnails with the imaging library.
package cover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/phrazzld/shelfd/internal/task"
)

// JPEGQuality is the encoder quality of written thumbnails.
const JPEGQuality = 85

// Renderer implements task.Renderer.
type Renderer struct{}

var _ task.Renderer = Renderer{}

// Render scales src to width, keeping the aspect ratio, and writes a JPEG to
// dst. Images narrower than width are not enlarged.
func (Renderer) Render(ctx context.Context, src, dst string, width int) error {
	if width <= 0 {
		return fmt.Errorf("invalid thumbnail width %d", width)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open cover %s: %w", src, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("failed to write thumbnail %s: %w", dst, err)
	}
	return nil
}
