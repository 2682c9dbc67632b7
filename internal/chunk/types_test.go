package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "panel___doc___how_to___index_md",
		DocumentID("panel", "doc/how_to/index.md"))
	assert.Equal(t, "hvplot___README_md", DocumentID("hvplot", "README.md"))
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "panel___a_md::chunk3", ChunkID("panel___a_md", 3))
}

func TestPathStem(t *testing.T) {
	assert.Equal(t, "Scatter", PathStem("doc/reference/elements/Scatter.ipynb"))
	assert.Equal(t, "index", PathStem("index.md"))
	assert.Equal(t, "README", PathStem("README"))
	assert.Equal(t, ".hidden", PathStem(".hidden"))
}

func TestNewDocument_NormalizesPath(t *testing.T) {
	doc := NewDocument("panel", "./doc\\guide.md", "body")

	assert.Equal(t, "doc/guide.md", doc.SourcePath)
	assert.Equal(t, "guide", doc.SourcePathStem)
	assert.Equal(t, DocumentID("panel", "doc/guide.md"), doc.ID)
	assert.Equal(t, ContentHash("body"), doc.ContentHash)
	assert.NotEqual(t, ContentHash("body "), doc.ContentHash)
}
