package models

import "time"

// Stage is a step of a site backup. A site that fails stays at failed;
// every other run ends at done.
type Stage string

const (
	StageAuthenticating    Stage = "authenticating"
	StageWalking           Stage = "walking"
	StageAwaitingDownloads Stage = "awaiting_downloads"
	StageArchiving         Stage = "archiving"
	StageUploading         Stage = "uploading"
	StageCleaningUp        Stage = "cleaning_up"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

type SiteResult struct {
	Site            string        `json:"site"`
	SiteURL         string        `json:"site_url"`
	Status          Status        `json:"status"`
	Stage           Stage         `json:"stage"`
	FailedStage     Stage         `json:"failed_stage,omitempty"`
	Error           string        `json:"error,omitempty"`
	ArchivePath     string        `json:"archive_path,omitempty"`
	ArchiveSize     int64         `json:"archive_size,omitempty"`
	LogPath         string        `json:"log_path,omitempty"`
	FoldersVisited  int           `json:"folders_visited"`
	FoldersSkipped  int           `json:"folders_skipped"`
	FilesDownloaded int           `json:"files_downloaded"`
	FilesFailed     int           `json:"files_failed"`
	BytesDownloaded int64         `json:"bytes_downloaded"`
	UploadedKey     string        `json:"uploaded_key,omitempty"`
	UploadError     string        `json:"upload_error,omitempty"`
	CleanupError    string        `json:"cleanup_error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

func (r SiteResult) OK() bool {
	return r.Status == StatusOK
}

type RunSummary struct {
	RunTimestamp  string       `json:"run_timestamp"`
	Sites         []SiteResult `json:"sites"`
	Succeeded     int          `json:"succeeded"`
	Failed        int          `json:"failed"`
	OperationTime string       `json:"operation_time"`
	Duration      string       `json:"duration"`
}

func (s *RunSummary) Add(r SiteResult) {
	s.Sites = append(s.Sites, r)
	if r.OK() {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// CatalogEntry is one recorded site result.
type CatalogEntry struct {
	ID              int64  `json:"id"`
	RunTimestamp    string `json:"run_timestamp"`
	Site            string `json:"site"`
	Status          Status `json:"status"`
	FailedStage     Stage  `json:"failed_stage,omitempty"`
	Error           string `json:"error,omitempty"`
	ArchivePath     string `json:"archive_path,omitempty"`
	ArchiveSize     int64  `json:"archive_size"`
	UploadedKey     string `json:"uploaded_key,omitempty"`
	FilesDownloaded int    `json:"files_downloaded"`
	FilesFailed     int    `json:"files_failed"`
	BytesDownloaded int64  `json:"bytes_downloaded"`
	StartedAt       string `json:"started_at"`
	Duration        string `json:"duration"`
}
