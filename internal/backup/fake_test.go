package backup

import (
	"context"
	"errors"
	"net/http"
	"path"
	"sync"

	"spbackup/config"
	"spbackup/internal/models"
	"spbackup/internal/sharepoint"
	"spbackup/pkg/utils"
)

var errCorrupt = errors.New("stream reset by peer")

// fakeRemote is an in-memory document library.
type fakeRemote struct {
	mu sync.Mutex

	folders  map[string][]string // folder path -> child folder paths, in listing order
	files    map[string][]string // folder path -> file paths, in listing order
	contents map[string][]byte
	noMeta   map[string]bool

	authErr      map[string]error // by site name
	transient    map[string]int   // file path -> 503s before success
	broken       map[string]bool  // file path -> always fails
	fetchHook    func(file sharepoint.File)
	visited      []string
	fetchCalls   map[string]int
	inFlight     int
	maxInFlight  int
	authAttempts int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		folders:    make(map[string][]string),
		files:      make(map[string][]string),
		contents:   make(map[string][]byte),
		noMeta:     make(map[string]bool),
		authErr:    make(map[string]error),
		transient:  make(map[string]int),
		broken:     make(map[string]bool),
		fetchCalls: make(map[string]int),
	}
}

func (f *fakeRemote) addFolder(p string) *fakeRemote {
	if _, ok := f.folders[p]; ok {
		return f
	}
	f.folders[p] = nil
	parent := path.Dir(p)
	if _, ok := f.folders[parent]; ok {
		f.folders[parent] = append(f.folders[parent], p)
	}
	return f
}

func (f *fakeRemote) addFile(p, content string) *fakeRemote {
	dir := path.Dir(p)
	f.files[dir] = append(f.files[dir], p)
	f.contents[p] = []byte(content)
	return f
}

func (f *fakeRemote) Authenticate(ctx context.Context, site config.Site) (*sharepoint.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authAttempts++
	if err := f.authErr[site.Name()]; err != nil {
		return nil, err
	}
	return sharepoint.NewSession(site.SiteURL, nil), nil
}

func (f *fakeRemote) GetFolder(ctx context.Context, s *sharepoint.Session, p string) (sharepoint.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, p)
	if _, ok := f.folders[p]; !ok || f.noMeta[p] {
		return sharepoint.Folder{Name: path.Base(p)}, nil
	}
	return sharepoint.Folder{Name: path.Base(p), ServerRelativeURL: p}, nil
}

func (f *fakeRemote) ListFiles(ctx context.Context, s *sharepoint.Session, folder sharepoint.Folder) ([]sharepoint.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sharepoint.File
	for _, p := range f.files[folder.ServerRelativeURL] {
		out = append(out, sharepoint.File{Name: path.Base(p), ServerRelativeURL: p})
	}
	return out, nil
}

func (f *fakeRemote) ListFolders(ctx context.Context, s *sharepoint.Session, folder sharepoint.Folder) ([]sharepoint.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sharepoint.Folder
	for _, p := range f.folders[folder.ServerRelativeURL] {
		out = append(out, sharepoint.Folder{Name: path.Base(p), ServerRelativeURL: p})
	}
	return out, nil
}

func (f *fakeRemote) FetchFile(ctx context.Context, s *sharepoint.Session, file sharepoint.File) ([]byte, error) {
	f.mu.Lock()
	f.fetchCalls[file.ServerRelativeURL]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	hook := f.fetchHook
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		hook(file)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[file.ServerRelativeURL] {
		return nil, errCorrupt
	}
	if f.transient[file.ServerRelativeURL] > 0 {
		f.transient[file.ServerRelativeURL]--
		return nil, &sharepoint.StatusError{
			Method:     http.MethodGet,
			URL:        file.ServerRelativeURL,
			StatusCode: http.StatusServiceUnavailable,
			Status:     "503 Service Unavailable",
		}
	}
	data, ok := f.contents[file.ServerRelativeURL]
	if !ok {
		return nil, &sharepoint.StatusError{Method: http.MethodGet, URL: file.ServerRelativeURL, StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	return data, nil
}

// recordingArchiver wraps the real archiver and notes when it runs.
type recordingArchiver struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	onStart func(sourceDir string)
	err     error
}

func (a *recordingArchiver) Create(sourceDir, outputPath string) (*models.ArchiveInfo, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.onStart != nil {
		a.onStart(sourceDir)
	}
	if a.err != nil {
		return nil, a.err
	}
	return utils.CreateTarGz(sourceDir, outputPath)
}

type fakeUploader struct {
	err  error
	keys []string
}

func (u *fakeUploader) UploadArchive(ctx context.Context, localPath, siteName string) (*models.UploadResult, error) {
	if u.err != nil {
		return nil, u.err
	}
	key := siteName + "/" + path.Base(localPath)
	u.keys = append(u.keys, key)
	return &models.UploadResult{BucketName: "backups", Key: key, LocalPath: localPath}, nil
}

type fakeRecorder struct {
	results []models.SiteResult
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, runTimestamp string, result models.SiteResult) error {
	r.results = append(r.results, result)
	return r.err
}
