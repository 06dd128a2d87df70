package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"spbackup/internal/retrier"
	"spbackup/internal/sharepoint"
)

const DefaultWorkers = 10

// DownloadStats summarizes the tasks a dispatcher ran.
type DownloadStats struct {
	Submitted  int64
	Downloaded int64
	Failed     int64
	Bytes      int64
}

// Dispatcher runs file downloads on a bounded pool. Submit blocks while
// all workers are busy. A dispatcher serves exactly one site run; Wait is
// the barrier that must return before the mirror is archived.
type Dispatcher struct {
	remote  Remote
	session *sharepoint.Session
	retry   *retrier.Executor
	logger  *slog.Logger

	group errgroup.Group

	submitted  atomic.Int64
	downloaded atomic.Int64
	failed     atomic.Int64
	bytes      atomic.Int64
}

func NewDispatcher(workers int, remote Remote, session *sharepoint.Session, retry *retrier.Executor, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = DefaultWorkers
	}
	d := &Dispatcher{
		remote:  remote,
		session: session,
		retry:   retry,
		logger:  logger,
	}
	d.group.SetLimit(workers)
	return d
}

// Submit queues file for download to localPath. Failures are logged by the
// task itself and never reach other tasks.
func (d *Dispatcher) Submit(ctx context.Context, file sharepoint.File, localPath string) {
	d.submitted.Add(1)
	d.group.Go(func() error {
		d.download(ctx, file, localPath)
		return nil
	})
}

// Wait blocks until every submitted task has finished.
func (d *Dispatcher) Wait() DownloadStats {
	_ = d.group.Wait()
	return DownloadStats{
		Submitted:  d.submitted.Load(),
		Downloaded: d.downloaded.Load(),
		Failed:     d.failed.Load(),
		Bytes:      d.bytes.Load(),
	}
}

func (d *Dispatcher) download(ctx context.Context, file sharepoint.File, localPath string) {
	data, err := retrier.Value(ctx, d.retry, "fetch "+file.ServerRelativeURL,
		func(ctx context.Context) ([]byte, error) {
			return d.remote.FetchFile(ctx, d.session, file)
		})
	if err == nil {
		err = writeFileAtomic(localPath, data)
	}
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("Error downloading", "file", file.ServerRelativeURL, "error", err)
		return
	}

	d.downloaded.Add(1)
	d.bytes.Add(int64(len(data)))
	d.logger.Info("Successfully downloaded", "file", file.ServerRelativeURL, "bytes", len(data))
}

// writeFileAtomic replaces path with data. A failed write leaves no file
// behind, so the mirror only ever holds complete documents.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
