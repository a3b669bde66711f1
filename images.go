package gitpress

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	_ "image/gif"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/gitpress/content"
	"github.com/eringen/gitpress/store"
)

const (
	maxImageWidth = 1600
	jpegQuality   = 85
)

// imageBodyLimit leaves room for multipart framing around the largest
// accepted image.
func imageBodyLimit() echo.MiddlewareFunc {
	return middleware.BodyLimit(fmt.Sprintf("%dK", content.MaxImageSize/1024+512))
}

// processImage shrinks images wider than maxImageWidth. JPEG and PNG keep
// their format; WebP is re-encoded as JPEG since there is no WebP encoder.
// GIFs and images that already fit are returned untouched so animation and
// metadata survive. The returned filename carries the extension matching
// the returned bytes.
func processImage(data []byte, filename string) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if format == "gif" || cfg.Width <= maxImageWidth {
		return data, filename, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	newH := h * maxImageWidth / w
	dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	base := strings.TrimSuffix(filename, path.Ext(filename))
	switch format {
	case "png":
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		filename = base + ".png"
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		filename = base + ".jpg"
	}
	return buf.Bytes(), filename, nil
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no image file provided")
	}
	if file.Size > content.MaxImageSize {
		return echo.NewHTTPError(http.StatusBadRequest, "file too large (max 10MB)")
	}
	if _, ok := content.ImageExtension(file.Filename); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "only jpg, png, gif and webp images are accepted")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, content.MaxImageSize+1))
	if err != nil {
		return err
	}

	data, filename, err := processImage(data, file.Filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image: "+err.Error())
	}

	url, err := a.Content.UploadImage(c.Request().Context(), a.repo(c), data, filename)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}

// handleRaw serves uploaded images out of the local store the way
// raw.githubusercontent.com serves them for GitHub repositories.
func (a *App) handleRaw(local *LocalBackend) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Param("repo") != a.Config.RepoName {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		filePath := path.Clean(c.Param("*"))
		if !strings.HasPrefix(filePath, "assets/") {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		repo := local.Repository("", c.Param("owner"))
		branch, err := repo.DefaultBranch(c.Request().Context())
		if err != nil {
			return err
		}
		if c.Param("branch") != branch {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		file, err := store.ReadFile(c.Request().Context(), repo, filePath)
		if err != nil {
			return err
		}
		contentType := mime.TypeByExtension(path.Ext(filePath))
		if contentType == "" {
			contentType = echo.MIMEOctetStream
		}
		c.Response().Header().Set("ETag", `"`+file.SHA+`"`)
		return c.Blob(http.StatusOK, contentType, file.Content)
	}
}
