package model_test

import (
	"testing"

	"firstbit/storage-api/model"

	"github.com/stretchr/testify/require"
)

func TestPartSliceRoundtrip(t *testing.T) {
	t.Parallel()

	in := model.PartSlice{
		{PartNumber: 1, Size: 5242880, ETag: `etag-1`, Uploaded: true},
		{PartNumber: 2, Size: 1048576, ETag: `etag-2`, Uploaded: true},
	}

	v, err := in.Value()
	require.NoError(t, err)

	var out model.PartSlice
	require.NoError(t, out.Scan(v))
	require.Equal(t, in, out)
}

func TestPartSliceScanNil(t *testing.T) {
	t.Parallel()

	var out model.PartSlice
	require.NoError(t, out.Scan(nil))
	require.Empty(t, out)
}

func TestSessionTerminal(t *testing.T) {
	t.Parallel()

	for _, status := range []string{model.SessionInit, model.SessionUploading} {
		s := model.UploadSession{Status: status}
		require.False(t, s.Terminal(), status)
	}

	for _, status := range []string{
		model.SessionCompleting, model.SessionCompleted,
		model.SessionAborting, model.SessionAborted,
	} {
		s := model.UploadSession{Status: status}
		require.True(t, s.Terminal(), status)
	}
}
