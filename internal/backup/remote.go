// Package backup mirrors SharePoint document libraries to local disk and
// packs each site into one archive per run.
package backup

import (
	"context"

	"spbackup/config"
	"spbackup/internal/models"
	"spbackup/internal/sharepoint"
)

// Remote is the SharePoint surface a backup needs. *sharepoint.Client
// implements it.
type Remote interface {
	Authenticate(ctx context.Context, site config.Site) (*sharepoint.Session, error)
	GetFolder(ctx context.Context, s *sharepoint.Session, path string) (sharepoint.Folder, error)
	ListFiles(ctx context.Context, s *sharepoint.Session, folder sharepoint.Folder) ([]sharepoint.File, error)
	ListFolders(ctx context.Context, s *sharepoint.Session, folder sharepoint.Folder) ([]sharepoint.Folder, error)
	FetchFile(ctx context.Context, s *sharepoint.Session, file sharepoint.File) ([]byte, error)
}

// Archiver packs a finished mirror directory.
type Archiver interface {
	Create(sourceDir, outputPath string) (*models.ArchiveInfo, error)
}

// Uploader ships a finished archive offsite.
type Uploader interface {
	UploadArchive(ctx context.Context, localPath, siteName string) (*models.UploadResult, error)
}

// Recorder keeps a record of each finished site.
type Recorder interface {
	Record(ctx context.Context, runTimestamp string, result models.SiteResult) error
}

var _ Remote = (*sharepoint.Client)(nil)
