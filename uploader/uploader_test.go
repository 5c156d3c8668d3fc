package uploader_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"firstbit/storage-api/model"
	"firstbit/storage-api/storage"
	"firstbit/storage-api/uploader"

	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the upload API for the orchestrator.
type fakeServer struct {
	mu        sync.Mutex
	chunkSize int64
	nextID    int

	parts     map[string][]recordedPart
	completed map[string][]storage.CompletedPart
	aborted   map[string]bool

	failParts int // fail this many part uploads before recovering
}

type recordedPart struct {
	Number int32
	Size   int64
}

func newFakeServer(chunkSize int64) *fakeServer {
	return &fakeServer{
		chunkSize: chunkSize,
		parts:     make(map[string][]recordedPart),
		completed: make(map[string][]storage.CompletedPart),
		aborted:   make(map[string]bool),
	}
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/files/init-multipart", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.nextID++
		id := fmt.Sprintf("upload-%d", f.nextID)
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"uploadId":  id,
			"key":       "uploads/u1/" + id,
			"chunkSize": f.chunkSize,
		})
	})

	mux.HandleFunc("/api/files/upload-multipart", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if f.failParts > 0 {
			f.failParts--
			f.mu.Unlock()
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		f.mu.Unlock()

		if err := r.ParseMultipartForm(f.chunkSize + 1<<20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		uploadID := r.FormValue("uploadId")
		var partNumber int32
		fmt.Sscanf(r.FormValue("partNumber"), "%d", &partNumber)

		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		var size int64
		buf := make([]byte, 32*1024)
		for {
			n, err := file.Read(buf)
			size += int64(n)
			if err != nil {
				break
			}
		}

		f.mu.Lock()
		f.parts[uploadID] = append(f.parts[uploadID], recordedPart{Number: partNumber, Size: size})
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"etag":       fmt.Sprintf("etag-%d", partNumber),
			"partNumber": partNumber,
		})
	})

	mux.HandleFunc("/api/files/complete-multipart", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UploadID string                  `json:"uploadId"`
			FileName string                  `json:"fileName"`
			Size     model.ByteSize          `json:"size"`
			Parts    []storage.CompletedPart `json:"parts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.completed[body.UploadID] = body.Parts
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"file": model.File{ID: "file-" + body.UploadID, Name: body.FileName, Size: body.Size},
		})
	})

	mux.HandleFunc("/api/files/abort-multipart", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UploadID string `json:"uploadId"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.aborted[body.UploadID] = true
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{"message": "Upload aborted"})
	})

	return mux
}

func writeTempFile(t *testing.T, name string, size int) string {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestUploader(srvURL string, chunkSize int64) *uploader.Uploader {
	u := uploader.New(uploader.NewClient(srvURL, "test-token"))
	u.ChunkSize = chunkSize
	return u
}

func TestUploadSplitsIntoContiguousParts(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	// 2.5 chunks -> parts of 1024, 1024, 512
	path := writeTempFile(t, "data.bin", 2560)

	u := newTestUploader(ts.URL, chunkSize)
	results := u.UploadAll(context.Background(), []string{path})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].File)

	recorded := srv.parts["upload-1"]
	require.Len(t, recorded, 3)

	var total int64
	for i, p := range recorded {
		require.Equal(t, int32(i+1), p.Number)
		total += p.Size
	}
	require.Equal(t, int64(2560), total)

	// Completion carries the full sorted inventory
	completed := srv.completed["upload-1"]
	require.Len(t, completed, 3)
	for i, p := range completed {
		require.Equal(t, int32(i+1), p.PartNumber)
	}
}

func TestUploadExactChunkMultiple(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	path := writeTempFile(t, "data.bin", 2*chunkSize)

	u := newTestUploader(ts.URL, chunkSize)
	results := u.UploadAll(context.Background(), []string{path})

	require.NoError(t, results[0].Err)
	require.Len(t, srv.parts["upload-1"], 2)
}

func TestUploadRetriesFailedPartOnce(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	srv.failParts = 1
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	path := writeTempFile(t, "data.bin", 2048)

	u := newTestUploader(ts.URL, chunkSize)
	results := u.UploadAll(context.Background(), []string{path})

	require.NoError(t, results[0].Err)
	require.Len(t, srv.parts["upload-1"], 2)
}

func TestUploadAbortsOnPersistentFailure(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	srv.failParts = 10 // outlives the single retry
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	path := writeTempFile(t, "data.bin", 2048)

	u := newTestUploader(ts.URL, chunkSize)
	results := u.UploadAll(context.Background(), []string{path})

	require.Error(t, results[0].Err)
	require.Nil(t, results[0].File)
	require.True(t, srv.aborted["upload-1"])
	require.Empty(t, srv.completed["upload-1"])
}

func TestUploadSkipsDuplicates(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	path := writeTempFile(t, "data.bin", 512)

	u := newTestUploader(ts.URL, chunkSize)
	results := u.UploadAll(context.Background(), []string{path, path})

	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, uploader.ErrDuplicate)
	require.Len(t, srv.parts, 1)
}

func TestUploadFailureDoesNotCancelSiblings(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	good := writeTempFile(t, "good.bin", 512)
	missing := filepath.Join(t.TempDir(), "missing.bin")

	u := newTestUploader(ts.URL, chunkSize)
	results := u.UploadAll(context.Background(), []string{missing, good})

	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.NotNil(t, results[1].File)
}

func TestUploadPreflight(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(1024)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	big := writeTempFile(t, "big.bin", 4096)
	empty := writeTempFile(t, "empty.bin", 0)

	u := newTestUploader(ts.URL, 1024)
	u.MaxFileSize = 2048

	results := u.UploadAll(context.Background(), []string{big, empty})

	require.ErrorIs(t, results[0].Err, uploader.ErrFileTooLarge)
	require.ErrorIs(t, results[1].Err, uploader.ErrEmptyFile)

	// Nothing reached the server
	require.Empty(t, srv.parts)
}

func TestUploadCancellationAborts(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	path := writeTempFile(t, "data.bin", 10*chunkSize)

	ctx, cancel := context.WithCancel(context.Background())

	u := newTestUploader(ts.URL, chunkSize)
	u.OnProgress = func(name string, sent, total int64) {
		// Pull the plug after the first chunk lands
		cancel()
	}

	results := u.UploadAll(ctx, []string{path})

	require.Error(t, results[0].Err)
	require.Nil(t, results[0].File)
	require.True(t, srv.aborted["upload-1"])
	require.Empty(t, srv.completed["upload-1"])
}

func TestUploadReportsProgress(t *testing.T) {
	t.Parallel()

	const chunkSize = 1024

	srv := newFakeServer(chunkSize)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	path := writeTempFile(t, "data.bin", 2560)

	type update struct {
		name        string
		sent, total int64
	}

	var (
		mu      sync.Mutex
		updates []update
	)

	u := newTestUploader(ts.URL, chunkSize)
	u.OnProgress = func(name string, sent, total int64) {
		mu.Lock()
		updates = append(updates, update{name, sent, total})
		mu.Unlock()
	}

	results := u.UploadAll(context.Background(), []string{path})
	require.NoError(t, results[0].Err)

	require.Len(t, updates, 3)
	for i, up := range updates {
		require.Equal(t, "data.bin", up.name)
		require.Equal(t, int64(2560), up.total)
		require.Equal(t, []int64{1024, 2048, 2560}[i], up.sent)
	}
}
