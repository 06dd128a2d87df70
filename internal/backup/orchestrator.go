package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"

	"spbackup/config"
	"spbackup/internal/logging"
	"spbackup/internal/models"
	"spbackup/internal/retrier"
	"spbackup/internal/sharepoint"
	"spbackup/pkg/utils"
)

// Options configure one run of the orchestrator. All sites of a run share
// RunTimestamp.
type Options struct {
	DownloadRoot  string
	LogDir        string
	Workers       int
	RetryAttempts int
	RetryDelay    time.Duration
	RunTimestamp  string

	// Echo, when set, receives a copy of every site log entry.
	Echo io.Writer
}

// Orchestrator backs up one site at a time: authenticate, mirror the
// library, wait for downloads, archive, optionally upload, clean up.
type Orchestrator struct {
	remote   Remote
	archiver Archiver
	uploader Uploader
	opts     Options

	clock     clock.Clock
	removeAll func(string) error
}

func NewOrchestrator(remote Remote, archiver Archiver, uploader Uploader, opts Options) *Orchestrator {
	if opts.RunTimestamp == "" {
		opts.RunTimestamp = utils.RunTimestamp(time.Now())
	}
	if archiver == nil {
		archiver = TarGzArchiver{}
	}
	return &Orchestrator{
		remote:    remote,
		archiver:  archiver,
		uploader:  uploader,
		opts:      opts,
		clock:     clock.WallClock,
		removeAll: os.RemoveAll,
	}
}

// MirrorDir is where a site's files are mirrored during this run.
func (o *Orchestrator) MirrorDir(site config.Site) string {
	return filepath.Join(o.opts.DownloadRoot, site.Name()+"_"+o.opts.RunTimestamp)
}

// Run backs up one site. Only failures to authenticate, to set up the
// mirror or to write the archive fail the site; problems with individual
// folders and files are logged and the backup carries on with what it has.
func (o *Orchestrator) Run(ctx context.Context, site config.Site) (result models.SiteResult) {
	result = models.SiteResult{
		Site:      site.Name(),
		SiteURL:   site.SiteURL,
		Status:    models.StatusOK,
		StartedAt: o.clock.Now(),
	}
	defer func() {
		result.Duration = o.clock.Now().Sub(result.StartedAt)
	}()

	siteLog, err := logging.OpenSiteLog(o.opts.LogDir, site.Name(), o.opts.RunTimestamp, o.opts.Echo)
	if err != nil {
		return o.fail(result, logging.Discard(), models.StageAuthenticating, err)
	}
	defer siteLog.Close()
	logger := siteLog.Logger
	result.LogPath = siteLog.Path

	logger.Info("Starting download script", "site_url", site.SiteURL, "base_path", site.BasePath)

	retry := retrier.New(o.opts.RetryAttempts, o.opts.RetryDelay, logger, sharepoint.IsTransient)
	retry.Permanent = sharepoint.IsAuthError
	retry.Clock = o.clock

	o.enter(&result, logger, models.StageAuthenticating)
	session, err := retrier.Value(ctx, retry, "authenticate "+site.SiteURL,
		func(ctx context.Context) (*sharepoint.Session, error) {
			return o.remote.Authenticate(ctx, site)
		})
	if err != nil {
		return o.fail(result, logger, models.StageAuthenticating, err)
	}

	o.enter(&result, logger, models.StageWalking)
	mirror := o.MirrorDir(site)
	if err := ensureDir(mirror); err != nil {
		return o.fail(result, logger, models.StageWalking, err)
	}

	dispatcher := NewDispatcher(o.opts.Workers, o.remote, session, retry, logger)
	walker := NewWalker(o.remote, session, retry, dispatcher, logger)
	walker.Walk(ctx, site.BasePath, mirror)

	o.enter(&result, logger, models.StageAwaitingDownloads)
	downloads := dispatcher.Wait()

	walked := walker.Stats()
	result.FoldersVisited = walked.FoldersVisited
	result.FoldersSkipped = walked.FoldersSkipped
	result.FilesDownloaded = int(downloads.Downloaded)
	result.FilesFailed = int(downloads.Failed) + walked.FilesSkipped
	result.BytesDownloaded = downloads.Bytes
	logger.Info("Downloads finished",
		"downloaded", downloads.Downloaded,
		"failed", result.FilesFailed,
		"size", utils.FormatBytes(downloads.Bytes),
		"folders_skipped", walked.FoldersSkipped)

	if err := ctx.Err(); err != nil {
		return o.fail(result, logger, models.StageAwaitingDownloads, err)
	}

	o.enter(&result, logger, models.StageArchiving)
	archivePath := utils.ArchivePath(mirror)
	info, err := o.archiver.Create(mirror, archivePath)
	if err != nil {
		return o.fail(result, logger, models.StageArchiving, err)
	}
	result.ArchivePath = info.ArchivePath
	result.ArchiveSize = info.CompressedSize
	logger.Info("Created tar archive", "archive", info.ArchivePath, "size", utils.FormatBytes(info.CompressedSize))

	if o.uploader != nil {
		o.enter(&result, logger, models.StageUploading)
		uploaded, err := o.uploader.UploadArchive(ctx, info.ArchivePath, site.Name())
		if err != nil {
			result.UploadError = err.Error()
			logger.Error("Error uploading archive", "archive", info.ArchivePath, "error", err)
		} else {
			result.UploadedKey = uploaded.Key
			logger.Info("Uploaded archive", "bucket", uploaded.BucketName, "key", uploaded.Key)
		}
	}

	logger.Info("Download script finished", "site", site.Name())

	o.enter(&result, logger, models.StageCleaningUp)
	if err := o.removeAll(mirror); err != nil {
		result.CleanupError = err.Error()
		logger.Error("Error removing directory", "dir", mirror, "error", err)
	} else {
		logger.Info("Successfully removed directory", "dir", mirror)
	}

	o.enter(&result, logger, models.StageDone)
	return result
}

func (o *Orchestrator) enter(result *models.SiteResult, logger *slog.Logger, stage models.Stage) {
	result.Stage = stage
	logger.Debug("Entering stage", "stage", stage)
}

func (o *Orchestrator) fail(result models.SiteResult, logger *slog.Logger, stage models.Stage, err error) models.SiteResult {
	result.Status = models.StatusFailed
	result.Stage = models.StageFailed
	result.FailedStage = stage
	result.Error = err.Error()
	if sharepoint.IsAuthError(err) {
		logger.Error("Authentication failed", "error", err)
	} else {
		logger.Error("Site backup failed", "stage", stage, "error", err)
	}
	return result
}

// TarGzArchiver writes mirrors with utils.CreateTarGz.
type TarGzArchiver struct{}

func (TarGzArchiver) Create(sourceDir, outputPath string) (*models.ArchiveInfo, error) {
	info, err := utils.CreateTarGz(sourceDir, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", sourceDir, err)
	}
	return info, nil
}
