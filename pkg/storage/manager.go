package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	// registered decoders
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

const (
	// DefaultQuality is the JPEG quality used when none is configured
	DefaultQuality = 95

	publishPerm    = 0666 // as os.Create, narrowed by the umask
	downloadPrefix = "tmp_"
	partSuffix     = ".part"
)

// Manager owns the output directory: it stages downloads, converts them to
// JPEG and publishes the result by rename.
type Manager struct {
	outputDir string
	quality   int
	logger    logger.Logger
	published atomic.Int64
}

// NewManager creates a new storage manager
func NewManager(outputDir string, quality int, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "failed to create output directory")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{
		outputDir: outputDir,
		quality:   quality,
		logger:    log,
	}, nil
}

// FinalPath returns the published location for slug and ordinal
func (m *Manager) FinalPath(slug string, ordinal int) string {
	return filepath.Join(m.outputDir, fmt.Sprintf("%s_%d.jpg", slug, ordinal))
}

// StageDownload writes downloaded bytes to a uniquely named file in the output
// directory and returns its path. The caller removes it.
func (m *Manager) StageDownload(assetID, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s%s_%s.%s", downloadPrefix, assetID, uuid.NewString(), ext)
	path := filepath.Join(m.outputDir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return "", errs.Wrap(errs.ErrorTypeIO, err, "failed to stage download")
	}
	return path, nil
}

// ConvertAndPublish decodes sourceFile, re-encodes it as JPEG and publishes it
// at finalPath. finalPath is either left untouched or replaced by a complete
// file; readers never observe a partial one.
func (m *Manager) ConvertAndPublish(sourceFile, finalPath string) error {
	img, err := decodeFile(sourceFile)
	if err != nil {
		return err
	}

	dir := filepath.Dir(finalPath)
	base := filepath.Base(finalPath)

	tmp, err := createStagingFile(dir, base)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to create staging file")
	}
	tmpPath := tmp.Name()

	published := false
	defer func() {
		if !published {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := jpeg.Encode(tmp, flatten(img), &jpeg.Options{Quality: m.quality}); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to encode jpeg")
	}
	if err := tmp.Sync(); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to sync staging file")
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to close staging file")
	}

	// Atomic rename
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to publish file")
	}
	published = true
	m.published.Add(1)

	m.logger.DebugWithFields("file published", map[string]interface{}{
		"path":   finalPath,
		"source": filepath.Base(sourceFile),
	})
	return nil
}

// createStagingFile creates .{base}.{random}.part in dir. The mode goes through
// the umask the same way os.Create does, so a published file gets the
// permissions of any other file written by the process.
func createStagingFile(dir, base string) (*os.File, error) {
	var lastErr error
	for i := 0; i < 10; i++ {
		name := filepath.Join(dir, "."+base+"."+uuid.NewString()[:8]+partSuffix)
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, publishPerm)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "failed to open source")
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConvert, err, "failed to decode "+filepath.Base(path))
	}
	if b := img.Bounds(); b.Empty() {
		return nil, errs.New(errs.ErrorTypeConvert, fmt.Sprintf("empty %s image", format))
	}
	return img, nil
}

// flatten composites images that carry transparency or a palette onto an
// opaque white canvas.
func flatten(img image.Image) image.Image {
	_, paletted := img.(*image.Paletted)
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() && !paletted {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// SweepStaging removes staging artifacts left behind by an interrupted run.
// Published files are never touched. Must not run while a pipeline is writing
// to the same directory.
func (m *Manager) SweepStaging() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "failed to read directory")
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isStagingName(entry.Name()) {
			continue
		}
		path := filepath.Join(m.outputDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.WarnWithFields("failed to remove staging file", map[string]interface{}{
				"path":  path,
				"error": err,
			})
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.InfoWithFields("staging files swept", map[string]interface{}{
			"removed": removed,
			"dir":     m.outputDir,
		})
	}
	return removed, nil
}

func isStagingName(name string) bool {
	if strings.HasPrefix(name, ".") && strings.HasSuffix(name, partSuffix) {
		return true
	}
	if !strings.HasPrefix(name, downloadPrefix) {
		return false
	}
	// tmp_{assetId}_{uuid}.{ext}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(stem, "_")
	if i <= len(downloadPrefix) {
		return false
	}
	_, err := uuid.Parse(stem[i+1:])
	return err == nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetPublishedCount returns the number of files published by this manager
func (m *Manager) GetPublishedCount() int {
	return int(m.published.Load())
}
