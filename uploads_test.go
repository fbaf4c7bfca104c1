package podengine

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ta *testApp) upload(filename, contentType, kind string, data []byte) *httptest.ResponseRecorder {
	ta.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if kind != "" {
		require.NoError(ta.t, w.WriteField("type", kind))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(ta.t, err)
	_, err = part.Write(data)
	require.NoError(ta.t, err)
	require.NoError(ta.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ta.token)
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadAudio(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.upload("My Episode #1.mp3", "audio/mpeg", "audio", []byte("ID3 fake mp3 data"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[uploadResponse](t, rec)
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Filename, "my-episode-1-"), resp.Filename)
	assert.True(t, strings.HasSuffix(resp.Filename, ".mp3"), resp.Filename)
	assert.Equal(t, "/uploads/"+resp.Filename, resp.URL)
	assert.EqualValues(t, len("ID3 fake mp3 data"), resp.Size)

	data, err := os.ReadFile(filepath.Join(ta.Config.UploadDir, resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, "ID3 fake mp3 data", string(data))

	rec = ta.admin(http.MethodGet, "/api/admin/uploads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string][]Upload](t, rec)["uploads"]
	require.Len(t, list, 1)
	assert.Equal(t, "My Episode #1.mp3", list[0].OriginalName)
	assert.Equal(t, UploadAudio, list[0].Kind)
}

func TestUploadRejectsBadAudio(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.upload("notes.txt", "text/plain", "audio", []byte("hello"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid audio file type. Please upload MP3, WAV, OGG, or M4A files.", errorMessage(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+ta.token)
	rec = httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", errorMessage(t, rec))
}

func TestUploadImageIsResized(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.upload("cover.png", "image/png", "", pngBytes(t, 2000, 500))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[uploadResponse](t, rec)
	assert.True(t, strings.HasSuffix(resp.Filename, ".jpg"), resp.Filename)
	assert.Equal(t, "image/jpeg", resp.Type)

	f, err := os.Open(filepath.Join(ta.Config.UploadDir, resp.Filename))
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, maxImageWidth, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())

	rec = ta.upload("broken.png", "image/png", "image", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRequiresAdmin(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	ta.token = "invalid"
	rec := ta.upload("a.mp3", "audio/mpeg", "audio", []byte("x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRateLimit(t *testing.T) {
	ta := newTestApp(t, SiteConfig{UploadRateLimit: 2})

	for i := 0; i < 2; i++ {
		rec := ta.upload("a.mp3", "audio/mpeg", "audio", []byte("x"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ta.upload("a.mp3", "audio/mpeg", "audio", []byte("x"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", errorMessage(t, rec))
}

func TestDeleteUpload(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	resp := decodeBody[uploadResponse](t, ta.upload("a.mp3", "audio/mpeg", "audio", []byte("x")))

	rec := ta.admin(http.MethodDelete, "/api/admin/upload", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Filename required", errorMessage(t, rec))

	// Only the base name is used, so this cannot reach the database file.
	rec = ta.admin(http.MethodDelete, "/api/admin/upload?filename=../test.db", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", errorMessage(t, rec))
	_, err := os.Stat(ta.Config.DatabasePath)
	require.NoError(t, err)

	rec = ta.admin(http.MethodDelete, "/api/admin/upload?filename="+resp.Filename, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(filepath.Join(ta.Config.UploadDir, resp.Filename))
	assert.True(t, os.IsNotExist(err))

	rec = ta.admin(http.MethodGet, "/api/admin/uploads", "")
	assert.Empty(t, decodeBody[map[string][]Upload](t, rec)["uploads"])
}

func TestDeleteUploadWithMissingFile(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	resp := decodeBody[uploadResponse](t, ta.upload("gone.mp3", "audio/mpeg", "audio", []byte("x")))
	require.NoError(t, os.Remove(filepath.Join(ta.Config.UploadDir, resp.Filename)))

	rec := ta.admin(http.MethodDelete, "/api/admin/upload?filename="+resp.Filename, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.admin(http.MethodGet, "/api/admin/uploads", "")
	assert.Empty(t, decodeBody[map[string][]Upload](t, rec)["uploads"])

	rec = ta.admin(http.MethodDelete, "/api/admin/upload?filename="+resp.Filename, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadKind(t *testing.T) {
	assert.Equal(t, UploadImage, uploadKind("", "image/webp", "x.webp"))
	assert.Equal(t, UploadAudio, uploadKind("", "application/octet-stream", "x.m4a"))
	assert.Equal(t, UploadAudio, uploadKind("audio", "text/plain", "x.txt"))
	assert.Equal(t, "", uploadKind("", "text/plain", "x.txt"))
}
