package podengine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1600
	jpegQuality   = 85
	maxUploadSize = 50 << 20 // 50MB
	uploadsPrefix = "/uploads/"
)

// Upload kinds.
const (
	UploadAudio = "audio"
	UploadImage = "image"
)

var audioContentTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/ogg":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
}

var audioExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".ogg": true,
	".m4a": true,
}

// isAllowedAudio accepts a file when either its content type or its
// extension is on the allowlist.
func isAllowedAudio(contentType, filename string) bool {
	return audioContentTypes[strings.ToLower(contentType)] ||
		audioExtensions[strings.ToLower(filepath.Ext(filename))]
}

// processImage decodes an image from src, resizes it to at most
// maxImageWidth wide, and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueFilename builds "<slug>-<uuid><ext>" from the client's file name.
func uniqueFilename(originalName, ext string) string {
	base := Slugify(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "file"
	}
	if len(base) > 60 {
		base = strings.TrimRight(base[:60], "-")
	}
	return base + "-" + uuid.NewString() + strings.ToLower(ext)
}

func uploadURL(filename string) string {
	return uploadsPrefix + filename
}

func uploadKind(requested, contentType, filename string) string {
	switch requested {
	case UploadAudio, UploadImage:
		return requested
	}
	if strings.HasPrefix(contentType, "image/") {
		return UploadImage
	}
	if strings.HasPrefix(contentType, "audio/") || isAllowedAudio(contentType, filename) {
		return UploadAudio
	}
	return ""
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

func (a *App) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apiError(c, http.StatusBadRequest, "No file provided")
	}
	if file.Size > maxUploadSize {
		return apiError(c, http.StatusBadRequest, "File too large. Maximum size is 50MB.")
	}
	contentType := file.Header.Get(echo.HeaderContentType)

	kind := uploadKind(c.FormValue("type"), contentType, file.Filename)
	switch kind {
	case UploadAudio:
		if !isAllowedAudio(contentType, file.Filename) {
			return apiError(c, http.StatusBadRequest, "Invalid audio file type. Please upload MP3, WAV, OGG, or M4A files.")
		}
	case UploadImage:
	default:
		return apiError(c, http.StatusBadRequest, "Unsupported file type")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(a.Config.UploadDir, 0o755); err != nil {
		return a.internalError(c, "Failed to upload file", fmt.Errorf("create uploads dir: %w", err))
	}

	up := Upload{
		OriginalName: file.Filename,
		Kind:         kind,
		UploadedAt:   a.now().UTC(),
	}
	if kind == UploadImage {
		data, err := processImage(src)
		if err != nil {
			return apiError(c, http.StatusBadRequest, "Invalid image: "+err.Error())
		}
		up.Filename = uniqueFilename(file.Filename, ".jpg")
		up.ContentType = "image/jpeg"
		up.Size = int64(len(data))
		if err := os.WriteFile(filepath.Join(a.Config.UploadDir, up.Filename), data, 0o644); err != nil {
			return a.internalError(c, "Failed to upload file", fmt.Errorf("write image: %w", err))
		}
	} else {
		up.Filename = uniqueFilename(file.Filename, filepath.Ext(file.Filename))
		up.ContentType = contentType
		n, err := writeFile(filepath.Join(a.Config.UploadDir, up.Filename), src)
		if err != nil {
			return a.internalError(c, "Failed to upload file", fmt.Errorf("write audio: %w", err))
		}
		up.Size = n
	}
	up.URL = uploadURL(up.Filename)

	if err := a.Store.SaveUpload(c.Request().Context(), up); err != nil {
		return a.internalError(c, "Failed to upload file", err)
	}
	a.Logger.Info().Str("filename", up.Filename).Str("kind", kind).Int64("size", up.Size).Msg("file uploaded")

	return c.JSON(http.StatusOK, uploadResponse{
		Success:  true,
		URL:      up.URL,
		Filename: up.Filename,
		Size:     up.Size,
		Type:     up.ContentType,
	})
}

func writeFile(path string, src io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return n, err
}

// handleDeleteUpload removes a file by name. Only the base name is used,
// so the request cannot reach outside the upload directory.
func (a *App) handleDeleteUpload(c echo.Context) error {
	name := filepath.Base(c.QueryParam("filename"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return apiError(c, http.StatusBadRequest, "Filename required")
	}
	fileErr := os.Remove(filepath.Join(a.Config.UploadDir, name))
	if fileErr != nil && !errors.Is(fileErr, fs.ErrNotExist) {
		return a.internalError(c, "Failed to delete file", fileErr)
	}
	// The row goes even when the file is already missing from disk.
	err := a.Store.DeleteUpload(c.Request().Context(), name)
	switch {
	case errors.Is(err, ErrNotFound):
		if fileErr != nil {
			return apiError(c, http.StatusNotFound, "File not found")
		}
	case err != nil:
		return a.internalError(c, "Failed to delete file", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (a *App) handleListUploads(c echo.Context) error {
	uploads, err := a.Store.ListUploads(c.Request().Context())
	if err != nil {
		return a.internalError(c, "Failed to list uploads", err)
	}
	return c.JSON(http.StatusOK, map[string][]Upload{"uploads": uploads})
}
