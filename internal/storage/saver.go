package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ghaderi-m/comfyui-api/internal/config"

	_ "image/gif"
	_ "image/jpeg"
)

// DefaultBaseDir is where result images land relative to the working dir.
const DefaultBaseDir = "saved_images"

// remoteKeyPrefix namespaces every uploaded object key.
const remoteKeyPrefix = "comfyui"

// Uploader pushes raw image bytes to remote object storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Saver persists result images from a completed run. Local save and remote
// upload are independent: an upload failure is logged and swallowed, never
// propagated.
type Saver struct {
	baseDir  string
	uploader Uploader // nil disables uploads
	logger   *logrus.Logger
}

// NewSaver creates a saver writing under baseDir. A nil uploader disables
// remote uploads.
func NewSaver(baseDir string, uploader Uploader) *Saver {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return &Saver{
		baseDir:  baseDir,
		uploader: uploader,
		logger:   config.NewLogger(),
	}
}

// SaveAll writes every image as {baseDir}/{promptID}/{nodeID}_{idx}.png with
// idx 1-based within the node's list. Bytes are decoded and re-encoded as PNG
// to validate content before writing. After each local write the raw source
// bytes are uploaded when an uploader is configured.
func (s *Saver) SaveAll(ctx context.Context, images map[string][][]byte, promptID string) error {
	outputDir := filepath.Join(s.baseDir, promptID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Sorted node order keeps logs stable; filenames are deterministic
	// regardless.
	nodeIDs := make([]string, 0, len(images))
	for nodeID := range images {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)

	for _, nodeID := range nodeIDs {
		for idx, data := range images[nodeID] {
			filename := fmt.Sprintf("%s_%d.png", nodeID, idx+1)
			localPath := filepath.Join(outputDir, filename)

			if err := writePNG(localPath, data); err != nil {
				return fmt.Errorf("failed to save image %s: %w", filename, err)
			}
			s.logger.Infof("Saved image: %s", localPath)

			if s.uploader != nil {
				key := fmt.Sprintf("%s/%s/%s", remoteKeyPrefix, promptID, filename)
				if err := s.uploader.Upload(ctx, key, data); err != nil {
					s.logger.Errorf("Failed to upload %s: %v", key, err)
				}
			}
		}
	}

	return nil
}

// writePNG validates data as an image and writes it re-encoded as PNG.
func writePNG(path string, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid image data: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
