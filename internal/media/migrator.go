// Package media copies featured images from the source site to the
// destination's media library.
package media

import (
	"context"
	"path"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

// ErrEmptyDownload is returned when the source served a zero-length file.
var ErrEmptyDownload = errors.New("downloaded file is empty")

type Downloader interface {
	Download(ctx context.Context, rawURL string) (*wordpress.Download, error)
}

type Uploader interface {
	UploadMedia(ctx context.Context, upload wordpress.MediaUpload) (*wordpress.Media, error)
}

type Migrator struct {
	source    Downloader
	dest      Uploader
	sanitizer *FileSanitizer
}

func NewMigrator(source Downloader, dest Uploader) *Migrator {
	return &Migrator{
		source:    source,
		dest:      dest,
		sanitizer: NewFileSanitizer(),
	}
}

// Migrate downloads imageURL and uploads it to the destination, returning the
// new media ID.
func (m *Migrator) Migrate(ctx context.Context, imageURL string) (int, error) {
	logger := zerolog.Ctx(ctx).With().Str("image", imageURL).Logger()

	download, err := m.source.Download(ctx, imageURL)
	if err != nil {
		return 0, errors.Errorf("download failed: %w", err)
	}
	if len(download.Body) == 0 {
		return 0, errors.Errorf("download failed: %w", ErrEmptyDownload)
	}

	filename := m.sanitizer.FilenameFromURL(imageURL)
	contentType := DetectContentType(filename, download.Body, download.ContentType)
	if path.Ext(filename) == "" {
		filename += ExtensionFor(contentType)
	}
	logger.Debug().
		Str("filename", filename).
		Str("content_type", contentType).
		Int("bytes", len(download.Body)).
		Msg("Downloaded featured image")

	media, err := m.dest.UploadMedia(ctx, wordpress.MediaUpload{
		Filename:    filename,
		ContentType: contentType,
		Body:        download.Body,
	})
	if err != nil {
		return 0, errors.Errorf("upload failed: %w", err)
	}

	logger.Info().Int("media_id", media.ID).Str("filename", filename).Msg("✓ Uploaded featured image")
	return media.ID, nil
}
