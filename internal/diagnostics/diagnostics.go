// File: internal/diagnostics/diagnostics.go
// Description: Captures page state when a login attempt fails so the
// operator can see what the browser saw.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshotter is the slice of the page surface the recorder needs.
type Snapshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
	DOM(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
}

// Capture is the sidecar metadata written next to each snapshot pair.
type Capture struct {
	AccountID  string    `json:"account_id"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	URL        string    `json:"url,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Screenshot string    `json:"screenshot,omitempty"`
	DOM        string    `json:"dom,omitempty"`
}

// Recorder writes failure snapshots under a base directory. A nil Recorder
// is valid and records nothing, so callers never need to branch.
type Recorder struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder returns a recorder rooted at dir. The directory is created on
// first capture, not here, so a fully successful run leaves no empty
// directory behind.
func NewRecorder(dir string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{dir: dir, logger: logger.Named("diagnostics"), now: time.Now}
}

// Record captures a screenshot, the serialized document, and the current URL
// from the surface, tagged with the account and failure kind. Capture errors
// are logged and swallowed: diagnostics must never turn a recorded failure
// into a second one.
func (r *Recorder) Record(ctx context.Context, page Snapshotter, accountID, kind, reason string) {
	if r == nil {
		return
	}

	stamp := r.now().UTC()
	base := fmt.Sprintf("%s_%s_%s", sanitize(accountID), sanitize(kind), stamp.Format("20060102T150405"))

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Warn("Could not create diagnostics directory.", zap.String("dir", r.dir), zap.Error(err))
		return
	}

	record := Capture{
		AccountID:  accountID,
		Kind:       kind,
		Reason:     reason,
		CapturedAt: stamp,
	}

	if url, err := page.Location(ctx); err == nil {
		record.URL = url
	}

	if png, err := page.Screenshot(ctx); err != nil {
		r.logger.Warn("Screenshot capture failed.", zap.String("account", accountID), zap.Error(err))
	} else {
		name := base + ".png"
		if err := os.WriteFile(filepath.Join(r.dir, name), png, 0o644); err != nil {
			r.logger.Warn("Screenshot write failed.", zap.Error(err))
		} else {
			record.Screenshot = name
		}
	}

	if html, err := page.DOM(ctx); err != nil {
		r.logger.Warn("DOM capture failed.", zap.String("account", accountID), zap.Error(err))
	} else {
		name := base + ".html"
		if err := os.WriteFile(filepath.Join(r.dir, name), []byte(html), 0o644); err != nil {
			r.logger.Warn("DOM write failed.", zap.Error(err))
		} else {
			record.DOM = name
		}
	}

	meta, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		r.logger.Warn("Metadata encode failed.", zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(r.dir, base+".json"), meta, 0o644); err != nil {
		r.logger.Warn("Metadata write failed.", zap.Error(err))
		return
	}

	r.logger.Info("Failure snapshot recorded.",
		zap.String("account", accountID),
		zap.String("kind", kind),
		zap.String("file", base+".json"))
}

// sanitize keeps snapshot filenames portable.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}
