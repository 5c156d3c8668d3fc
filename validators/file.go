package validators

import (
	"errors"
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileNameTooLong = errors.New("file name is too long")
	ErrTooManyParts    = errors.New("file would exceed the maximum number of parts")
	ErrNoFileName      = errors.New("no file name provided")
)

const maxFileNameSize = 255

// UploadValidator rejects uploads that can never succeed before any network
// or storage call is made: empty or oversized names, files over the size
// cap, and files whose part count would exceed the store's ceiling.
func UploadValidator(name string, size int64) error {
	if name == "" {
		return ErrNoFileName
	}

	if len(name) > maxFileNameSize {
		return ErrFileNameTooLong
	}

	if size > viper.GetInt64("upload.max_size") {
		return ErrFileTooLarge
	}

	chunkSize := viper.GetInt64("upload.chunk_size")
	parts := (size + chunkSize - 1) / chunkSize
	if parts > viper.GetInt64("upload.max_chunks") {
		return ErrTooManyParts
	}

	return nil
}

// ContentTypeOrDetect returns the declared content type, falling back to the
// extension and finally to a sniff of the first bytes when the client sent
// nothing useful.
func ContentTypeOrDetect(declared, name string, head []byte) string {
	if declared != "" {
		return declared
	}

	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}

	if len(head) > 0 {
		return mimetype.Detect(head).String()
	}

	return "application/octet-stream"
}
