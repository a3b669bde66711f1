package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/eringen/gitpress/store"
)

const (
	imageDir = "assets/images"

	// MaxImageSize bounds uploads after any resizing.
	MaxImageSize = 10 << 20
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageExtension returns the lowercased extension of filename if it is an
// accepted image type.
func ImageExtension(filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(filename))
	return ext, imageExtensions[ext]
}

// UploadImage stores data under a fresh date-partitioned path and returns
// the public URL it is served from. Images are never overwritten, so the
// write carries no precondition.
func (s *Service) UploadImage(ctx context.Context, repo store.Repository, data []byte, filename string) (string, error) {
	ext, ok := ImageExtension(filename)
	switch {
	case !ok:
		return "", invalid("filename", "%q is not a jpg, png, gif or webp image", filename)
	case len(data) == 0:
		return "", invalid("image", "empty upload")
	case len(data) > MaxImageSize:
		return "", invalid("image", "larger than %d bytes", MaxImageSize)
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return "", err
	}

	millis := s.ids.nextMillis()
	now := s.now()
	dir := imageDir + "/" + now.Format("2006-01-02")
	filePath := dir + "/" + strconv.FormatInt(millis, 10) + ext

	s.markImageDir(ctx, repo, dir)

	if _, err := s.write(ctx, repo, filePath, data, "Upload image "+path.Base(filePath), ""); err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}

	branch, err := repo.DefaultBranch(ctx)
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}
	s.logger.Info("image uploaded", "repo", store.Key(repo), "path", filePath, "bytes", len(data))
	return repo.RawURL(branch, filePath), nil
}

// markImageDir writes the .gitkeep marker of a date directory once per
// BootstrapTTL. Git has no empty directories; the marker is a courtesy for
// people browsing the repository and the upload does not depend on it.
func (s *Service) markImageDir(ctx context.Context, repo store.Repository, dir string) {
	key := "image-dir:" + store.Key(repo) + ":" + dir
	if _, ok := s.bootstrapped.Get(key); ok {
		return
	}
	_, err := repo.WriteFile(ctx, dir+"/.gitkeep", nil, "Add image directory "+dir, "")
	if err != nil && !errors.Is(err, store.ErrExists) {
		s.logger.Debug("image directory marker not written", "repo", store.Key(repo), "dir", dir, "error", err)
		return
	}
	s.bootstrapped.Set(key, struct{}{}, s.config.BootstrapTTL)
}
