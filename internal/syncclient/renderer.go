package syncclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultFadeDuration is one leg of the cross-fade: fade-out, swap,
// fade-in.
const DefaultFadeDuration = 300 * time.Millisecond

// FileRenderer is a headless renderer: it materializes the current media
// as a file (plus a .mime sidecar) that a kiosk/viewer process watches.
// The cross-fade is honored as timing (fade-out wait, atomic swap,
// fade-in wait) so a wrapped viewer can animate opacity in step.
type FileRenderer struct {
	path   string
	fade   time.Duration
	logger *zap.Logger
}

func NewFileRenderer(path string, fade time.Duration, logger *zap.Logger) *FileRenderer {
	if fade <= 0 {
		fade = DefaultFadeDuration
	}
	return &FileRenderer{path: path, fade: fade, logger: logger}
}

func (r *FileRenderer) Render(ctx context.Context, mediaID int64, mimeType string, data io.ReadCloser) error {
	defer data.Close()

	// Write to a temp file first; the swap below is a rename so the
	// viewer never observes a half-written file.
	tmp := r.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := r.wait(ctx); err != nil { // fade out
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swap %s: %w", r.path, err)
	}
	if err := os.WriteFile(r.path+".mime", []byte(mimeType), 0o644); err != nil {
		r.logger.Warn("failed to write mime sidecar", zap.Error(err))
	}

	if err := r.wait(ctx); err != nil { // fade in
		return err
	}

	r.logger.Info("rendered media",
		zap.Int64("media_id", mediaID),
		zap.String("mime_type", mimeType),
		zap.String("path", filepath.Base(r.path)),
	)
	return nil
}

func (r *FileRenderer) Clear(ctx context.Context) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear %s: %w", r.path, err)
	}
	os.Remove(r.path + ".mime")
	r.logger.Info("display cleared")
	return nil
}

func (r *FileRenderer) wait(ctx context.Context) error {
	t := time.NewTimer(r.fade)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
