package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

func TestArticle_DisplayTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		og, page  string
		source    string
		wantTitle string
	}{
		{"og wins over page", "A", "B", "C", "A"},
		{"page when og missing", "", "B", "C", "B"},
		{"source as last resort", "", "", "C", "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := domain.Article{SourceTitle: tt.source}
			a.OGTitle = tt.og
			a.PageTitle = tt.page

			assert.Equal(t, tt.wantTitle, a.DisplayTitle())
		})
	}
}

func TestArticle_DisplayDescription(t *testing.T) {
	t.Parallel()

	a := domain.Article{SourceDescription: "from feed"}
	assert.Equal(t, "from feed", a.DisplayDescription())

	a.OGDescription = "from page"
	assert.Equal(t, "from page", a.DisplayDescription())
}

func TestArticleMetadata_Image(t *testing.T) {
	t.Parallel()

	m := domain.ArticleMetadata{TwitterImage: "https://img.test/t.jpg"}
	assert.Equal(t, "https://img.test/t.jpg", m.Image())

	m.OGImage = "https://img.test/og.jpg"
	assert.Equal(t, "https://img.test/og.jpg", m.Image())
}

func TestCategories_ValueAndScan(t *testing.T) {
	t.Parallel()

	v, err := domain.Categories{"tech", "ai"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"tech","ai"}`, v)

	var nilCats domain.Categories
	v, err = nilCats.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	var scanned domain.Categories
	require.NoError(t, scanned.Scan([]byte(`{tech,"machine learning"}`)))
	assert.Equal(t, domain.Categories{"tech", "machine learning"}, scanned)
}

func TestArticleStatus_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.ArticleStatusSuccess.Valid())
	assert.False(t, domain.ArticleStatus("archived").Valid())
}
