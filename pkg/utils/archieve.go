package utils

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"spbackup/internal/models"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const ArchiveExtension = ".tar.gz"

// ArchivePath is the archive written next to a mirror directory.
func ArchivePath(sourceDir string) string {
	return filepath.Clean(sourceDir) + ArchiveExtension
}

// CreateTarGz packs sourceDir into a gzip-compressed tarball whose single
// root entry is the directory's base name. Entries are written in lexical
// order. The archive is built under a temporary name and renamed into place,
// so outputPath never holds a partial archive.
func CreateTarGz(sourceDir, outputPath string) (*models.ArchiveInfo, error) {
	sourceDir = filepath.Clean(sourceDir)
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", sourceDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	tmpPath := tmp.Name()
	defer CleanupTempFile(tmpPath)
	defer tmp.Close()

	createdAt := time.Now()
	archiveInfo := &models.ArchiveInfo{
		ArchivePath: outputPath,
		SourceDir:   sourceDir,
		RootName:    filepath.Base(sourceDir),
		CreatedAt:   createdAt,
	}

	gzWriter := gzip.NewWriter(tmp)
	tarWriter := tar.NewWriter(gzWriter)

	if err := addToArchive(tarWriter, sourceDir, archiveInfo); err != nil {
		return nil, fmt.Errorf("failed to add %s to archive: %w", sourceDir, err)
	}
	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync archive: %w", err)
	}

	fileInfo, err := tmp.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive info: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}

	archiveInfo.CompressedSize = fileInfo.Size()
	if archiveInfo.OriginalSize > 0 {
		archiveInfo.CompressionRatio = float64(archiveInfo.CompressedSize) / float64(archiveInfo.OriginalSize)
	}
	return archiveInfo, nil
}

func addToArchive(tarWriter *tar.Writer, sourceDir string, archiveInfo *models.ArchiveInfo) error {
	parent := filepath.Dir(sourceDir)

	return filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			// Mirrors only hold folders and documents.
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(parent, p)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)
		if d.IsDir() {
			header.Name += "/"
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			archiveInfo.DirCount++
			return nil
		}

		file, err := os.Open(p)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := io.Copy(tarWriter, file)
		if err != nil {
			return err
		}
		archiveInfo.FileCount++
		archiveInfo.OriginalSize += n
		return nil
	})
}

// ListTarGz reads the entries of an archive without extracting it.
func ListTarGz(archivePath string) (*models.ArchiveListing, error) {
	listing := &models.ArchiveListing{ArchivePath: archivePath}

	err := walkTarGz(archivePath, func(header *tar.Header, _ io.Reader) error {
		name := strings.TrimSuffix(header.Name, "/")
		if listing.RootName == "" {
			listing.RootName = strings.SplitN(name, "/", 2)[0]
		}
		entry := models.ArchiveEntry{
			Name:  name,
			Size:  header.Size,
			IsDir: header.Typeflag == tar.TypeDir,
		}
		if entry.IsDir {
			listing.DirCount++
		} else {
			listing.FileCount++
			listing.TotalSizeBytes += header.Size
		}
		listing.Entries = append(listing.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	listing.TotalSizeHuman = FormatBytes(listing.TotalSizeBytes)
	return listing, nil
}

// ExtractTarGz unpacks an archive below destDir, refusing entries that
// would land outside it.
func ExtractTarGz(archivePath, destDir string) error {
	destDir = filepath.Clean(destDir)

	return walkTarGz(archivePath, func(header *tar.Header, r io.Reader) error {
		name := path.Clean(header.Name)
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return fmt.Errorf("archive entry %q escapes destination", header.Name)
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0755)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, r); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		default:
			return nil
		}
	})
}

func walkTarGz(archivePath string, fn func(*tar.Header, io.Reader) error) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if err := fn(header, tarReader); err != nil {
			return err
		}
	}
}

func ValidatePaths(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("path does not exist: %s", path)
			}
			return fmt.Errorf("cannot access path %s: %w", path, err)
		}
	}
	return nil
}

func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to cleanup temporary file %s: %w", path, err)
	}
	return nil
}
