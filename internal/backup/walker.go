package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"spbackup/internal/retrier"
	"spbackup/internal/sharepoint"
)

// WalkStats counts what a walk saw.
type WalkStats struct {
	FoldersVisited int
	FoldersSkipped int
	FilesQueued    int
	FilesSkipped   int
}

// Walker enumerates a folder tree depth first and mirrors its structure
// under a local directory, handing every file to a Dispatcher. Walker is
// driven by a single goroutine.
type Walker struct {
	remote     Remote
	session    *sharepoint.Session
	retry      *retrier.Executor
	dispatcher *Dispatcher
	logger     *slog.Logger

	stats WalkStats
}

func NewWalker(remote Remote, session *sharepoint.Session, retry *retrier.Executor, dispatcher *Dispatcher, logger *slog.Logger) *Walker {
	return &Walker{
		remote:     remote,
		session:    session,
		retry:      retry,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (w *Walker) Stats() WalkStats {
	return w.stats
}

// Walk mirrors the folder at remotePath into localDir. Problems with one
// folder are logged and skip that subtree only. Downloads queued by Walk may
// still be running when it returns.
func (w *Walker) Walk(ctx context.Context, remotePath, localDir string) {
	if ctx.Err() != nil {
		return
	}

	folder, err := retrier.Value(ctx, w.retry, "get folder "+remotePath,
		func(ctx context.Context) (sharepoint.Folder, error) {
			return w.remote.GetFolder(ctx, w.session, remotePath)
		})
	if err == nil && folder.ServerRelativeURL == "" {
		err = errors.NotFoundf("ServerRelativeUrl for folder %q", remotePath)
	}
	if err != nil {
		w.skipFolder(remotePath, err)
		return
	}
	w.logger.Info("Accessing Folder", "folder", folder.ServerRelativeURL)

	if err := ensureDir(localDir); err != nil {
		w.skipFolder(remotePath, err)
		return
	}
	w.stats.FoldersVisited++

	files, err := retrier.Value(ctx, w.retry, "list files "+folder.ServerRelativeURL,
		func(ctx context.Context) ([]sharepoint.File, error) {
			return w.remote.ListFiles(ctx, w.session, folder)
		})
	if err != nil {
		w.logger.Error("Error listing files", "folder", folder.ServerRelativeURL, "error", err)
	}
	for _, file := range files {
		if err := checkName(file.Name); err != nil {
			w.stats.FilesSkipped++
			w.logger.Error("Skipping file", "file", file.ServerRelativeURL, "error", err)
			continue
		}
		w.logger.Info("Queueing download", "file", file.Name)
		w.stats.FilesQueued++
		w.dispatcher.Submit(ctx, file, filepath.Join(localDir, file.Name))
	}

	subfolders, err := retrier.Value(ctx, w.retry, "list folders "+folder.ServerRelativeURL,
		func(ctx context.Context) ([]sharepoint.Folder, error) {
			return w.remote.ListFolders(ctx, w.session, folder)
		})
	if err != nil {
		w.logger.Error("Error listing folders", "folder", folder.ServerRelativeURL, "error", err)
	}
	for _, sub := range subfolders {
		if err := checkName(sub.Name); err != nil {
			w.skipFolder(sub.ServerRelativeURL, err)
			continue
		}
		if sub.ServerRelativeURL == "" {
			w.skipFolder(sub.Name, errors.NotFoundf("ServerRelativeUrl for folder %q", sub.Name))
			continue
		}
		w.Walk(ctx, sub.ServerRelativeURL, filepath.Join(localDir, sub.Name))
	}
}

func (w *Walker) skipFolder(remotePath string, err error) {
	w.stats.FoldersSkipped++
	w.logger.Error("Skipping folder", "folder", remotePath, "error", err)
}

// ensureDir creates dir and its parents; an existing directory is fine.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// checkName rejects names that cannot be used as one local path element.
func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errors.NotValidf("name %q", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return errors.NotValidf("name %q with path separator", name)
	}
	return nil
}
