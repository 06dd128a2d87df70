// Package logging opens the per-site log streams used during a run.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/lumberjack/v2"
)

const maxLogSizeMB = 100

// SiteLog is the log stream for one site's backup. Close flushes and
// releases the file; it must be called on every exit path.
type SiteLog struct {
	*slog.Logger
	Path string

	file *lumberjack.Logger
}

// FileName follows the sharepoint_downloads_<site>_<timestamp>.log layout.
func FileName(siteName, runTimestamp string) string {
	return fmt.Sprintf("sharepoint_downloads_%s_%s.log", siteName, runTimestamp)
}

// OpenSiteLog creates logDir if needed and returns a logger writing to the
// site's file. When echo is non-nil, entries are also written there.
func OpenSiteLog(logDir, siteName, runTimestamp string, echo io.Writer) (*SiteLog, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	path := filepath.Join(logDir, FileName(siteName, runTimestamp))
	file := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxLogSizeMB,
	}

	var w io.Writer = file
	if echo != nil {
		w = io.MultiWriter(file, echo)
	}

	handler := &sanitizingHandler{
		Handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	logger := slog.New(handler).With("site", siteName)

	return &SiteLog{Logger: logger, Path: path, file: file}, nil
}

func (l *SiteLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Sanitize makes a message safe for the log file: invalid UTF-8 is replaced
// and zero-width spaces, common in SharePoint names, are dropped.
func Sanitize(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\u200b", "")
}

type sanitizingHandler struct {
	slog.Handler
}

func (h *sanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.Handler.Handle(ctx, clean)
}

func (h *sanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &sanitizingHandler{Handler: h.Handler.WithAttrs(clean)}
}

func (h *sanitizingHandler) WithGroup(name string) slog.Handler {
	return &sanitizingHandler{Handler: h.Handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Sanitize(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, Sanitize(err.Error()))
		}
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
