package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/domain"
)

// setupTestIndex creates an in-memory search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func shelf() []*SearchDocument {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*domain.Document{
		{
			ID: "doc-1", Title: "Les Misérables", Author: "Victor Hugo", Kind: domain.KindEPUB,
			Chapters:  []domain.Chapter{{Title: "Fantine", Page: 1}, {Title: "Cosette", Page: 80}},
			CreatedAt: base,
		},
		{
			ID: "doc-2", Title: "The Tempest", Author: "William Shakespeare", Kind: domain.KindPDF,
			Chapters:  []domain.Chapter{{Title: "The Storm", Page: 1}},
			CreatedAt: base.Add(time.Hour),
		},
		{
			ID: "doc-3", Title: "Moby-Dick", Author: "Herman Melville", Kind: domain.KindTXT,
			CreatedAt: base.Add(2 * time.Hour),
		},
	}
	out := make([]*SearchDocument, len(docs))
	for i, d := range docs {
		out[i] = FromDocument(d)
	}
	return out
}

func TestFold(t *testing.T) {
	assert.Equal(t, "les miserables", Fold("Les Misérables"))
	assert.Equal(t, "bronte", Fold("Brontë"))
	assert.Equal(t, "", Fold(""))
	assert.Equal(t, "creme brulee", Fold("Crème Brûlée"))
}

func TestNewSearchIndex_InMemory(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_OnDiskReopen(t *testing.T) {
	dir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexDocuments(shelf()))
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestSearch_ByTitleIgnoresAccents(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	result, err := index.Search(context.Background(), SearchParams{Query: "miserables"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "doc-1", result.Hits[0].ID)
	assert.Equal(t, "Les Misérables", result.Hits[0].Title)
	assert.Equal(t, "Victor Hugo", result.Hits[0].Author)
	assert.Equal(t, "epub", result.Hits[0].Kind)
}

func TestSearch_ByAuthor(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	result, err := index.Search(context.Background(), SearchParams{Query: "shakespeare"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "doc-2", result.Hits[0].ID)
}

func TestSearch_ByChapterTitle(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	result, err := index.Search(context.Background(), SearchParams{Query: "cosette"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "doc-1", result.Hits[0].ID)
}

func TestSearch_TypoTolerance(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	result, err := index.Search(context.Background(), SearchParams{Query: "tempist"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "doc-2", result.Hits[0].ID)
}

func TestSearch_KindFilter(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	result, err := index.Search(context.Background(), SearchParams{Kinds: []string{"pdf", "txt"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
}

func TestSearch_EmptyQueryMatchesAllRecentFirst(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	result, err := index.Search(context.Background(), SearchParams{SortBy: "recent"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 3)
	assert.Equal(t, "doc-3", result.Hits[0].ID)
}

func TestSearchIndex_DeleteAndReindex(t *testing.T) {
	index := setupTestIndex(t)
	docs := shelf()
	require.NoError(t, index.IndexDocuments(docs))

	require.NoError(t, index.DeleteDocument("doc-2"))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	// Indexing an existing ID replaces it.
	docs[0].Title = "Notre-Dame de Paris"
	require.NoError(t, index.IndexDocument(docs[0]))
	result, err := index.Search(context.Background(), SearchParams{Query: "notre"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "doc-1", result.Hits[0].ID)
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(shelf()))

	require.NoError(t, index.Rebuild(shelf()[:1]))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestFromDocument_SkipsPlaceholderChapters(t *testing.T) {
	sd := FromDocument(&domain.Document{
		ID:    "doc-x",
		Title: "Mixed",
		Kind:  domain.KindEPUB,
		Chapters: []domain.Chapter{
			{Title: "Chapter 1", Page: 1},
			{Title: "The Storm", Page: 10},
			{Title: "", Page: 20},
		},
	})

	assert.Equal(t, []string{"The Storm"}, sd.Chapters)
}
