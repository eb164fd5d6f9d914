package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"venue-crawler/utils"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/avif": ".avif",
}

// FileImageStore downloads venue images into a local directory.
type FileImageStore struct {
	dir    string
	client *resty.Client
	retry  utils.RetryConfig
}

// NewFileImageStore stores images under dir.
func NewFileImageStore(dir, userAgent string, timeout time.Duration, retry utils.RetryConfig) *FileImageStore {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/avif,image/webp,image/*;q=0.8")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &FileImageStore{dir: dir, client: client, retry: retry}
}

// Save downloads imageURL and returns the stored file path, relative to the
// working directory when dir is. The name is nameHint plus a short hash of
// the URL, so two venues with the same name do not collide.
func (s *FileImageStore) Save(ctx context.Context, imageURL, nameHint string) (string, error) {
	var resp *resty.Response
	err := s.retry.Do(ctx, "download "+imageURL, func(ctx context.Context) error {
		r, err := s.client.R().SetContext(ctx).Get(imageURL)
		if err != nil {
			return err
		}
		if r.IsError() {
			return fmt.Errorf("GET %s: status %d", imageURL, r.StatusCode())
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}

	ext, err := extension(resp.Header().Get("Content-Type"))
	if err != nil {
		return "", err
	}
	if len(resp.Body()) == 0 {
		return "", fmt.Errorf("image %s: empty body", imageURL)
	}

	sum := sha1.Sum([]byte(imageURL))
	if nameHint == "" {
		nameHint = "venue"
	}
	name := nameHint + "-" + hex.EncodeToString(sum[:4]) + ext

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("image: create dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, resp.Body(), 0644); err != nil {
		return "", fmt.Errorf("image: write %s: %w", path, err)
	}
	return filepath.ToSlash(path), nil
}

func extension(contentType string) (string, error) {
	if contentType == "" {
		return ".jpg", nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("image: bad content type %q: %w", contentType, err)
	}
	if ext, ok := imageExtensions[strings.ToLower(mediaType)]; ok {
		return ext, nil
	}
	return "", fmt.Errorf("image: unsupported content type %q", mediaType)
}
