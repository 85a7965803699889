// File: internal/diagnostics/capture.go
// Package diagnostics captures the failing page's screenshot and markup so a
// run that died on an unexpected interstitial can be diagnosed afterwards.
// Capture is strictly best-effort: its own failures are logged, never
// propagated.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source is the page surface a capture reads from.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Capturer writes failure artifacts under a single directory.
type Capturer struct {
	dir    string
	logger *zap.Logger
}

// New creates the artifact directory if needed.
func New(dir string, logger *zap.Logger) (*Capturer, error) {
	if dir == "" {
		dir = "results"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory %q: %w", dir, err)
	}
	return &Capturer{
		dir:    dir,
		logger: logger.Named("diagnostics"),
	}, nil
}

// Capture writes a screenshot and the page HTML for the given account and
// stage. Each artifact is independent; one failing does not stop the other.
func (c *Capturer) Capture(ctx context.Context, identifier, stage string, p Source) {
	base := fmt.Sprintf("%s_%s_%s", sanitize(identifier), stage, time.Now().Format("20060102150405"))
	log := c.logger.With(zap.String("account", identifier), zap.String("stage", stage))

	if shot, err := p.Screenshot(ctx); err != nil {
		log.Warn("Failed to capture screenshot", zap.Error(err))
	} else {
		path := filepath.Join(c.dir, base+".png")
		if err := os.WriteFile(path, shot, 0o644); err != nil {
			log.Warn("Failed to write screenshot", zap.Error(err))
		} else {
			log.Info("Screenshot captured", zap.String("path", path))
		}
	}

	if html, err := p.HTML(ctx); err != nil {
		log.Warn("Failed to capture page HTML", zap.Error(err))
	} else {
		path := filepath.Join(c.dir, base+".html")
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			log.Warn("Failed to write page HTML", zap.Error(err))
		}
	}
}

// sanitize maps an account identifier to a filesystem-safe fragment.
func sanitize(identifier string) string {
	replacer := strings.NewReplacer(
		"@", "_at_",
		".", "_",
		string(os.PathSeparator), "_",
	)
	return replacer.Replace(identifier)
}
