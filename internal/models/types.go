package models

import "time"

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

type PruneResult struct {
	BucketName     string   `json:"bucket_name"`
	Prefix         string   `json:"prefix"`
	DaysOld        int      `json:"days_old"`
	DryRun         bool     `json:"dry_run"`
	DeletedFiles   []string `json:"deleted_files"`
	DeletedCount   int      `json:"deleted_count"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	TotalSizeHuman string   `json:"total_size_human"`
	OperationTime  string   `json:"operation_time"`
	CutoffDate     string   `json:"cutoff_date"`
}

type UploadResult struct {
	BucketName     string `json:"bucket_name"`
	Key            string `json:"key"`
	LocalPath      string `json:"local_path"`
	SizeBytes      int64  `json:"size_bytes"`
	UploadDuration string `json:"upload_duration"`
}

type SiteArchives struct {
	Site           string    `json:"site"`
	ArchiveCount   int       `json:"archive_count"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	TotalSizeHuman string    `json:"total_size_human"`
	LatestKey      string    `json:"latest_key"`
	LastModified   time.Time `json:"last_modified"`
}

type ArchiveInventory struct {
	BucketName     string         `json:"bucket_name"`
	Region         string         `json:"region"`
	ObjectCount    int64          `json:"object_count"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	TotalSizeHuman string         `json:"total_size_human"`
	LastModified   time.Time      `json:"last_modified"`
	APIEndpoint    string         `json:"api_endpoint,omitempty"`
	Sites          []SiteArchives `json:"sites"`
}

type RestoreResult struct {
	BucketName       string `json:"bucket_name"`
	Site             string `json:"site"`
	Key              string `json:"key"`
	LocalPath        string `json:"local_path"`
	ExtractedTo      string `json:"extracted_to,omitempty"`
	SizeBytes        int64  `json:"size_bytes"`
	SizeHuman        string `json:"size_human"`
	LastModified     string `json:"last_modified"`
	OperationTime    string `json:"operation_time"`
	DownloadDuration string `json:"download_duration"`
}

type SiteInfo struct {
	Name     string `json:"name"`
	SiteURL  string `json:"site_url"`
	BasePath string `json:"base_path"`
	ClientID string `json:"client_id"`
	TenantID string `json:"tenant_id,omitempty"`
	AuthMode string `json:"auth_mode"`
}
