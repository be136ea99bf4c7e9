// Package upload stores image attachments and profile pictures on local disk
// and hands back the URL they are served under.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/yapyard-server/internal/log"
	"github.com/vovakirdan/yapyard-server/internal/utils"
)

var (
	// ErrNotImage is returned when the decoded payload is not an image.
	ErrNotImage = errors.New("payload is not an image")
	// ErrTooLarge is returned when the decoded payload exceeds the limit.
	ErrTooLarge = errors.New("image too large")
	// ErrMalformed is returned when the payload is not valid base64 data.
	ErrMalformed = errors.New("malformed image data")
)

// DiskUploader writes images into a directory.
type DiskUploader struct {
	dir      string
	baseURL  string
	maxBytes int64
	log      *zerolog.Logger
}

// NewDiskUploader creates the target directory if needed.
func NewDiskUploader(dir, baseURL string, maxBytes int64, logger *zerolog.Logger) (*DiskUploader, error) {
	if logger == nil {
		logger = applog.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskUploader{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		log:      logger,
	}, nil
}

// Dir is where files are written.
func (u *DiskUploader) Dir() string {
	return u.dir
}

// Upload decodes a data URL (or bare base64) image and stores it. The
// returned URL is baseURL/<random id><ext>.
func (u *DiskUploader) Upload(ctx context.Context, data string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := decode(data)
	if err != nil {
		return "", err
	}
	if u.maxBytes > 0 && int64(len(raw)) > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))
	}

	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	name := utils.NewCompactID() + mt.Extension()
	if err := os.WriteFile(filepath.Join(u.dir, name), raw, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	u.log.Debug().Str("file", name).Str("mime", mt.String()).Int("bytes", len(raw)).Msg("image stored")
	return u.baseURL + "/" + name, nil
}

// Discard removes an image stored by Upload. It is used when whatever was
// going to reference the URL could not be saved. Unknown or foreign URLs are
// rejected; a file that is already gone is not an error.
func (u *DiskUploader) Discard(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := strings.CutPrefix(url, u.baseURL+"/")
	if !ok || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q is not an upload", ErrMalformed, url)
	}
	if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	u.log.Debug().Str("file", name).Msg("image discarded")
	return nil
}

func decode(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, ErrMalformed
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return nil, ErrMalformed
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	return raw, nil
}
