package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaginationParams(t *testing.T) {
	params := DefaultPaginationParams()
	assert.Equal(t, 100, params.Limit)
	assert.Empty(t, params.Cursor)
}

func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"valid", 50, 50},
		{"zero defaults", 0, 100},
		{"negative defaults", -10, 100},
		{"over max caps", 5000, 1000},
		{"exactly max", 1000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PaginationParams{Limit: tt.limit}
			p.Validate()
			assert.Equal(t, tt.want, p.Limit)
		})
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	cursor := EncodeCursor("doc-V1StGXR8_Z5jdHi6B-myT")
	require.NotEmpty(t, cursor)

	key, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, "doc-V1StGXR8_Z5jdHi6B-myT", key)

	assert.Empty(t, EncodeCursor(""))
	key, err = DecodeCursor("")
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = DecodeCursor("!!not-base64!!")
	assert.Error(t, err)
}
