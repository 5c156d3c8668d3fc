package validators_test

import (
	"strings"
	"testing"

	"firstbit/storage-api/validators"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestUploadValidator(t *testing.T) {
	viper.Set("upload.max_size", int64(50)<<30)
	viper.Set("upload.chunk_size", int64(5)<<20)
	viper.Set("upload.max_chunks", 10000)

	require.ErrorIs(t, validators.UploadValidator("", 100), validators.ErrNoFileName)
	require.ErrorIs(t, validators.UploadValidator(strings.Repeat("a", 256), 100), validators.ErrFileNameTooLong)
	require.ErrorIs(t, validators.UploadValidator("big.bin", int64(50)<<30+1), validators.ErrFileTooLarge)

	require.NoError(t, validators.UploadValidator("ok.bin", int64(50)<<30))
	require.NoError(t, validators.UploadValidator("tiny.txt", 1))
}

func TestUploadValidatorPartCeiling(t *testing.T) {
	viper.Set("upload.max_size", int64(1)<<40)
	viper.Set("upload.chunk_size", int64(5)<<20)
	viper.Set("upload.max_chunks", 10)

	// Exactly 10 parts is fine, the first byte of part 11 is not
	require.NoError(t, validators.UploadValidator("a.bin", int64(10)*(5<<20)))
	require.ErrorIs(t, validators.UploadValidator("a.bin", int64(10)*(5<<20)+1), validators.ErrTooManyParts)
}

func TestContentTypeOrDetect(t *testing.T) {
	t.Parallel()

	require.Equal(t, "application/pdf", validators.ContentTypeOrDetect("application/pdf", "x.bin", nil))

	byExt := validators.ContentTypeOrDetect("", "report.pdf", nil)
	require.Equal(t, "application/pdf", byExt)

	// %PDF magic bytes, no extension to go by
	sniffed := validators.ContentTypeOrDetect("", "report", []byte("%PDF-1.7\n"))
	require.Equal(t, "application/pdf", sniffed)

	require.Equal(t, "application/octet-stream", validators.ContentTypeOrDetect("", "blob", nil))
}
