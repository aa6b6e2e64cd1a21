package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for range 1000 {
		id, err := Generate(PrefixSession)
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}
	assert.Len(t, ids, 1000)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixDocument, PrefixSession, "custom"} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			require.True(t, strings.HasPrefix(id, prefix+"-"))
			nanoidPart := strings.TrimPrefix(id, prefix+"-")
			assert.Len(t, nanoidPart, 21)

			for _, char := range nanoidPart {
				assert.True(t,
					(char >= 'A' && char <= 'Z') ||
						(char >= 'a' && char <= 'z') ||
						(char >= '0' && char <= '9') ||
						char == '_' || char == '-',
					"Character %c should be URL-safe", char)
			}
		})
	}
}

func TestMustGenerate(t *testing.T) {
	id := MustGenerate(PrefixDocument)
	assert.True(t, HasPrefix(id, PrefixDocument))
	assert.Len(t, id, len(PrefixDocument)+1+21)
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("ses-abc", PrefixSession))
	assert.False(t, HasPrefix("ses-", PrefixSession))
	assert.False(t, HasPrefix("doc-abc", PrefixSession))
	assert.False(t, HasPrefix("session", PrefixSession))
}

func TestEventID(t *testing.T) {
	a, b := EventID(), EventID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestFromKey_Stable(t *testing.T) {
	a := FromKey(PrefixDocument, "/library/tempest.json")
	b := FromKey(PrefixDocument, "/library/tempest.json")
	c := FromKey(PrefixDocument, "/library/hamlet.json")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, HasPrefix(a, PrefixDocument))

	_, err := uuid.Parse(strings.TrimPrefix(a, PrefixDocument+"-"))
	assert.NoError(t, err)
}
