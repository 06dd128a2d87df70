package backup

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"spbackup/internal/retrier"
	"spbackup/internal/sharepoint"
)

const libraryRoot = "/sites/alpha/Shared Documents"

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func testRetrier(logger *slog.Logger, attempts int) *retrier.Executor {
	return retrier.New(attempts, time.Millisecond, logger, sharepoint.IsTransient)
}

// sampleLibrary builds a three level tree with an empty folder.
func sampleLibrary() *fakeRemote {
	r := newFakeRemote()
	r.addFolder(libraryRoot).
		addFolder(libraryRoot+"/Reports").
		addFolder(libraryRoot+"/Reports/2024").
		addFolder(libraryRoot+"/Empty").
		addFile(libraryRoot+"/readme.txt", "hello").
		addFile(libraryRoot+"/Reports/q1.xlsx", "q1 numbers").
		addFile(libraryRoot+"/Reports/2024/annual.pdf", "annual report")
	return r
}

// mirrorTree lists dir relative to its root; directories end in "/".
func mirrorTree(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir(%s) error = %v", dir, err)
	}
	sort.Strings(out)
	return out
}

func walkLibrary(t *testing.T, remote *fakeRemote, workers int) (string, WalkStats, DownloadStats, string) {
	t.Helper()
	logger, logs := testLogger()
	retry := testRetrier(logger, 2)
	session := sharepoint.NewSession("https://contoso.sharepoint.com/sites/alpha", nil)

	dispatcher := NewDispatcher(workers, remote, session, retry, logger)
	walker := NewWalker(remote, session, retry, dispatcher, logger)

	mirror := filepath.Join(t.TempDir(), "alpha")
	walker.Walk(context.Background(), libraryRoot, mirror)
	downloads := dispatcher.Wait()
	return mirror, walker.Stats(), downloads, logs.String()
}

func TestWalkMirrorsTree(t *testing.T) {
	remote := sampleLibrary()
	remote.broken[libraryRoot+"/Reports/q1.xlsx"] = true

	mirror, walked, downloads, logs := walkLibrary(t, remote, 4)

	want := []string{
		"Empty/",
		"Reports/",
		"Reports/2024/",
		"Reports/2024/annual.pdf",
		"readme.txt",
	}
	if got := mirrorTree(t, mirror); !reflect.DeepEqual(got, want) {
		t.Errorf("mirror = %v, want %v", got, want)
	}

	data, err := os.ReadFile(filepath.Join(mirror, "Reports", "2024", "annual.pdf"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "annual report" {
		t.Errorf("annual.pdf = %q, want %q", data, "annual report")
	}

	if walked.FoldersVisited != 4 || walked.FoldersSkipped != 0 {
		t.Errorf("walk stats = %+v", walked)
	}
	if downloads.Submitted != 3 || downloads.Downloaded != 2 || downloads.Failed != 1 {
		t.Errorf("download stats = %+v", downloads)
	}
	if remote.fetchCalls[libraryRoot+"/Reports/q1.xlsx"] != 2 {
		t.Errorf("broken file fetched %d times, want 2", remote.fetchCalls[libraryRoot+"/Reports/q1.xlsx"])
	}
	if !strings.Contains(logs, "Error downloading") {
		t.Errorf("failed download not logged: %s", logs)
	}
}

func TestWalkDepthFirstOrder(t *testing.T) {
	remote := sampleLibrary()
	walkLibrary(t, remote, 1)

	want := []string{
		libraryRoot,
		libraryRoot + "/Reports",
		libraryRoot + "/Reports/2024",
		libraryRoot + "/Empty",
	}
	if !reflect.DeepEqual(remote.visited, want) {
		t.Errorf("visited = %v, want %v", remote.visited, want)
	}
}

func TestWalkSkipsFolderWithoutMetadata(t *testing.T) {
	remote := sampleLibrary()
	remote.noMeta[libraryRoot+"/Reports"] = true

	mirror, walked, downloads, logs := walkLibrary(t, remote, 2)

	want := []string{"Empty/", "readme.txt"}
	if got := mirrorTree(t, mirror); !reflect.DeepEqual(got, want) {
		t.Errorf("mirror = %v, want %v", got, want)
	}
	if walked.FoldersSkipped != 1 {
		t.Errorf("FoldersSkipped = %d, want 1", walked.FoldersSkipped)
	}
	if downloads.Downloaded != 1 {
		t.Errorf("Downloaded = %d, want 1", downloads.Downloaded)
	}
	if !strings.Contains(logs, "Skipping folder") {
		t.Errorf("skipped folder not logged: %s", logs)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	remote := newFakeRemote()

	mirror, walked, downloads, _ := walkLibrary(t, remote, 2)

	if _, err := os.Stat(mirror); !os.IsNotExist(err) {
		t.Errorf("mirror created for missing root: %v", err)
	}
	if walked.FoldersSkipped != 1 || downloads.Submitted != 0 {
		t.Errorf("walk = %+v, downloads = %+v", walked, downloads)
	}
}

func TestWalkSkipsUnsafeNames(t *testing.T) {
	remote := sampleLibrary()
	remote.addFile(libraryRoot+"/..", "escape")

	_, walked, downloads, _ := walkLibrary(t, remote, 2)

	if walked.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", walked.FilesSkipped)
	}
	if downloads.Submitted != 3 {
		t.Errorf("Submitted = %d, want 3", downloads.Submitted)
	}
	if remote.fetchCalls[libraryRoot+"/.."] != 0 {
		t.Errorf("unsafe name was fetched")
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	for i := 0; i < 3; i++ {
		if err := ensureDir(dir); err != nil {
			t.Fatalf("ensureDir() call %d error = %v", i+1, err)
		}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("Stat(%s) = %v, %v", dir, info, err)
	}
}

func TestEnsureDirOverFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDir(file); err == nil {
		t.Errorf("ensureDir() over a file expected error")
	}
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Plain", "report.docx", false},
		{"Spaces and unicode", "Q&A résumé 2024.pdf", false},
		{"Empty", "", true},
		{"Dot", ".", true},
		{"Dot dot", "..", true},
		{"Slash", "a/b", true},
		{"Backslash", `a\b`, true},
		{"NUL", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
