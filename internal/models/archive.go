package models

import "time"

type ArchiveInfo struct {
	ArchivePath      string    `json:"archive_path"`
	SourceDir        string    `json:"source_dir"`
	RootName         string    `json:"root_name"`
	FileCount        int       `json:"file_count"`
	DirCount         int       `json:"dir_count"`
	CompressedSize   int64     `json:"compressed_size"`
	OriginalSize     int64     `json:"original_size"`
	CompressionRatio float64   `json:"compression_ratio"`
	CreatedAt        time.Time `json:"created_at"`
}

type ArchiveEntry struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

type ArchiveListing struct {
	ArchivePath    string         `json:"archive_path"`
	RootName       string         `json:"root_name"`
	Entries        []ArchiveEntry `json:"entries"`
	FileCount      int            `json:"file_count"`
	DirCount       int            `json:"dir_count"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	TotalSizeHuman string         `json:"total_size_human"`
}
