// Package testutil provides shared test helpers for setting up stores and
// fake remote content hosts.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/starford/ehwaz/internal/store"
)

// TestDB creates a temporary SQLite store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/ehwaz-test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FakeRemote is an in-memory stand-in for a version-controlled content host.
// It speaks the slice of the contents API the sync engine uses: read, write
// with version tokens, directory listing, and repository probing.
type FakeRemote struct {
	mu    sync.Mutex
	files map[string][]byte // path -> content
	shas  map[string]string // path -> version token
	repos map[string]bool   // "owner/repo" -> exists

	Writes   int // number of PUT content calls
	Reads    int // number of GET content calls
	FailPath string
	srv      *httptest.Server
}

// NewFakeRemote starts a fake content host. The server is shut down when the
// test finishes.
func NewFakeRemote(t *testing.T) *FakeRemote {
	t.Helper()
	f := &FakeRemote{
		files: make(map[string][]byte),
		shas:  make(map[string]string),
		repos: make(map[string]bool),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the base URL of the fake host.
func (f *FakeRemote) URL() string { return f.srv.URL }

// Put seeds a file into the fake repository.
func (f *FakeRemote) Put(filePath string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filePath] = content
	f.shas[filePath] = "sha-" + filePath
}

// Get returns the current content of a file, or nil.
func (f *FakeRemote) Get(filePath string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[filePath]
}

// FileCount reports how many files the fake repository holds.
func (f *FakeRemote) FileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// AddRepo marks owner/repo as existing so EnsureRepo probes succeed.
func (f *FakeRemote) AddRepo(owner, repo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[owner+"/"+repo] = true
}

func (f *FakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/repos/") &&
		strings.Contains(r.URL.Path, "/contents/"):
		f.handleGetContents(w, r)
	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/contents/"):
		f.handlePutContents(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/repos/"):
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/repos/"), "/")
		if len(parts) == 2 && f.repos[parts[0]+"/"+parts[1]] {
			w.Write([]byte(`{"name":"` + parts[1] + `"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPost && r.URL.Path == "/user/repos":
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.repos["owner/"+body.Name] = true
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *FakeRemote) handleGetContents(w http.ResponseWriter, r *http.Request) {
	filePath := contentsPath(r.URL.Path)
	f.Reads++

	if content, ok := f.files[filePath]; ok {
		json.NewEncoder(w).Encode(map[string]string{
			"content": base64.StdEncoding.EncodeToString(content),
			"sha":     f.shas[filePath],
		})
		return
	}

	// Directory listing: entries directly under the requested path.
	var entries []map[string]string
	seen := make(map[string]bool)
	prefix := filePath + "/"
	for p := range f.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := rest[:i]
			if !seen[dir] {
				seen[dir] = true
				entries = append(entries, map[string]string{"name": dir, "type": "dir"})
			}
		} else {
			entries = append(entries, map[string]string{"name": rest, "type": "file"})
		}
	}
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func (f *FakeRemote) handlePutContents(w http.ResponseWriter, r *http.Request) {
	filePath := contentsPath(r.URL.Path)
	f.Writes++

	if f.FailPath != "" && filePath == f.FailPath {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"induced failure"}`))
		return
	}

	var body struct {
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Updating an existing file requires the current version token.
	if cur, exists := f.shas[filePath]; exists && body.SHA != cur {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"sha mismatch"}`))
		return
	}

	f.files[filePath] = raw
	f.shas[filePath] = "sha-" + filePath + "-" + path.Base(filePath)
	json.NewEncoder(w).Encode(map[string]any{
		"content": map[string]string{"sha": f.shas[filePath]},
	})
}

// contentsPath extracts the file path from /repos/{o}/{r}/contents/{path}.
func contentsPath(urlPath string) string {
	_, rest, _ := strings.Cut(urlPath, "/contents/")
	return rest
}
