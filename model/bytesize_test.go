package model_test

import (
	"encoding/json"
	"testing"

	"firstbit/storage-api/model"

	"github.com/stretchr/testify/require"
)

func TestByteSizeMarshalsAsDecimalString(t *testing.T) {
	t.Parallel()

	// 12 GiB does not fit the float64-safe integer range warnings away,
	// so sizes always travel as strings
	out, err := json.Marshal(model.ByteSize(12884901888))
	require.NoError(t, err)
	require.Equal(t, `"12884901888"`, string(out))
}

func TestByteSizeUnmarshalsStringsAndNumbers(t *testing.T) {
	t.Parallel()

	var s model.ByteSize
	require.NoError(t, json.Unmarshal([]byte(`"5242880"`), &s))
	require.Equal(t, model.ByteSize(5242880), s)

	require.NoError(t, json.Unmarshal([]byte(`5242880`), &s))
	require.Equal(t, model.ByteSize(5242880), s)
}

func TestByteSizeRejectsGarbage(t *testing.T) {
	t.Parallel()

	var s model.ByteSize
	require.Error(t, json.Unmarshal([]byte(`"-1"`), &s))
	require.Error(t, json.Unmarshal([]byte(`"12 MiB"`), &s))
}

func TestByteSizeTreatsNullAsZero(t *testing.T) {
	t.Parallel()

	s := model.ByteSize(42)
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	require.Equal(t, model.ByteSize(0), s)
}
