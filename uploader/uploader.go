package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"firstbit/storage-api/model"
	"firstbit/storage-api/storage"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkSize   = 5 << 20
	DefaultMaxParts    = 10000
	DefaultMaxFileSize = int64(50) << 30
	DefaultMaxFiles    = 10
)

var (
	ErrFileTooLarge = errors.New("file exceeds the maximum upload size")
	ErrTooManyParts = errors.New("file would exceed the maximum number of parts")
	ErrEmptyFile    = errors.New("empty files can't be uploaded")
	ErrDuplicate    = errors.New("duplicate file skipped")
)

// Uploader pushes a batch of local files through the multipart lifecycle.
// Files run concurrently up to MaxConcurrentFiles, parts within one file run
// sequentially. One file failing never cancels its siblings.
type Uploader struct {
	Client             *Client
	ChunkSize          int64
	MaxParts           int64
	MaxFileSize        int64
	MaxConcurrentFiles int

	// Called after every finished chunk with the running byte count for
	// that file. Optional
	OnProgress func(name string, sent, total int64)
}

func New(client *Client) *Uploader {
	return &Uploader{
		Client:             client,
		ChunkSize:          DefaultChunkSize,
		MaxParts:           DefaultMaxParts,
		MaxFileSize:        DefaultMaxFileSize,
		MaxConcurrentFiles: DefaultMaxFiles,
	}
}

// Result is the outcome for one file in a batch.
type Result struct {
	Path string
	Name string
	Size int64

	// Set on success
	File *model.File

	Err error
}

// UploadAll uploads the given paths. Paths that resolve to the same (name,
// size) pair as an earlier entry are skipped with ErrDuplicate. The returned
// slice is index-aligned with paths.
func (u *Uploader) UploadAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	type identity struct {
		name string
		size int64
	}
	seen := make(map[identity]bool)

	var g errgroup.Group
	g.SetLimit(u.MaxConcurrentFiles)

	for i, path := range paths {
		results[i].Path = path

		info, err := os.Stat(path)
		if err != nil {
			results[i].Err = err
			continue
		}

		results[i].Name = info.Name()
		results[i].Size = info.Size()

		id := identity{name: info.Name(), size: info.Size()}
		if seen[id] {
			results[i].Err = ErrDuplicate
			continue
		}
		seen[id] = true

		if err := u.preflight(info.Size()); err != nil {
			results[i].Err = err
			continue
		}

		i, path := i, path
		g.Go(func() error {
			file, err := u.uploadOne(ctx, path, results[i].Name, results[i].Size)
			results[i].File = file
			results[i].Err = err

			// Errors stay in the result slot. Returning them would make
			// errgroup cancel nothing (no shared context) but there is no
			// reason to surface a batch-level error either
			return nil
		})
	}

	g.Wait()

	return results
}

func (u *Uploader) preflight(size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}

	if size > u.MaxFileSize {
		return ErrFileTooLarge
	}

	if (size+u.ChunkSize-1)/u.ChunkSize > u.MaxParts {
		return ErrTooManyParts
	}

	return nil
}

func (u *Uploader) uploadOne(ctx context.Context, path, name string, size int64) (*model.File, error) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	init, err := u.Client.Init(ctx, name, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload, %w", err)
	}

	parts, err := u.uploadParts(ctx, path, init)
	if err != nil {
		u.abort(init)
		return nil, err
	}

	storage.SortParts(parts)

	file, err := u.Client.Complete(ctx, init.Key, init.UploadID, name, contentType, size, parts)
	if err != nil {
		u.abort(init)
		return nil, fmt.Errorf("failed to complete upload, %w", err)
	}

	return file, nil
}

func (u *Uploader) uploadParts(ctx context.Context, path string, init InitResult) ([]storage.CompletedPart, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunkSize := init.ChunkSize
	if chunkSize <= 0 {
		chunkSize = u.ChunkSize
	}

	var (
		parts []storage.CompletedPart
		sent  int64
		total int64
	)
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}

	buf := make([]byte, chunkSize)

	for partNumber := int32(1); ; partNumber++ {
		n, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, err
		}
		lastPart := err == io.ErrUnexpectedEOF

		part, upErr := u.Client.UploadPart(ctx, init.Key, init.UploadID, partNumber, buf[:n])
		if upErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			// One retry per part. Transient network errors on multi-gigabyte
			// uploads are routine, anything persistent fails the file
			part, upErr = u.Client.UploadPart(ctx, init.Key, init.UploadID, partNumber, buf[:n])
			if upErr != nil {
				return nil, fmt.Errorf("part %d failed, %w", partNumber, upErr)
			}
		}

		parts = append(parts, part)
		sent += int64(n)

		if u.OnProgress != nil {
			u.OnProgress(filepath.Base(path), sent, total)
		}

		if lastPart {
			break
		}
	}

	return parts, nil
}

// abort runs on its own deadline: the batch context is often already
// canceled by the time cleanup matters.
func (u *Uploader) abort(init InitResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Best effort, the server sweeps anything this misses
	_ = u.Client.Abort(ctx, init.Key, init.UploadID)
}
