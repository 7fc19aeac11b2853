package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePage struct {
	png     []byte
	pngErr  error
	html    string
	htmlErr error
	url     string
}

func (f *fakePage) Screenshot(ctx context.Context) ([]byte, error) { return f.png, f.pngErr }
func (f *fakePage) DOM(ctx context.Context) (string, error)        { return f.html, f.htmlErr }
func (f *fakePage) Location(ctx context.Context) (string, error)   { return f.url, nil }

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRecorder(dir, zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC) }
	return r, dir
}

func TestRecordWritesAllArtifacts(t *testing.T) {
	r, dir := newTestRecorder(t)
	page := &fakePage{
		png:  []byte{0x89, 'P', 'N', 'G'},
		html: "<html><body>login failed</body></html>",
		url:  "https://example.com/login",
	}

	r.Record(context.Background(), page, "AB1234", "wrong_credentials", "error banner shown")

	base := "AB1234_wrong_credentials_20240601T123045"
	png, err := os.ReadFile(filepath.Join(dir, base+".png"))
	require.NoError(t, err)
	assert.Equal(t, page.png, png)

	html, err := os.ReadFile(filepath.Join(dir, base+".html"))
	require.NoError(t, err)
	assert.Equal(t, page.html, string(html))

	meta, err := os.ReadFile(filepath.Join(dir, base+".json"))
	require.NoError(t, err)

	var capture Capture
	require.NoError(t, json.Unmarshal(meta, &capture))
	assert.Equal(t, "AB1234", capture.AccountID)
	assert.Equal(t, "wrong_credentials", capture.Kind)
	assert.Equal(t, "error banner shown", capture.Reason)
	assert.Equal(t, "https://example.com/login", capture.URL)
	assert.Equal(t, base+".png", capture.Screenshot)
	assert.Equal(t, base+".html", capture.DOM)
}

func TestRecordToleratesCaptureErrors(t *testing.T) {
	r, dir := newTestRecorder(t)
	page := &fakePage{
		pngErr:  errors.New("target crashed"),
		htmlErr: errors.New("target crashed"),
	}

	// Must not panic or return; metadata is still written.
	r.Record(context.Background(), page, "AB1234", "surface_lost", "browser gone")

	meta, err := os.ReadFile(filepath.Join(dir, "AB1234_surface_lost_20240601T123045.json"))
	require.NoError(t, err)

	var capture Capture
	require.NoError(t, json.Unmarshal(meta, &capture))
	assert.Empty(t, capture.Screenshot)
	assert.Empty(t, capture.DOM)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), &fakePage{}, "AB1234", "any", "")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "AB1234", sanitize("AB1234"))
	assert.Equal(t, "a_b_c", sanitize("a/b:c"))
	assert.Equal(t, "unknown", sanitize(""))
}
