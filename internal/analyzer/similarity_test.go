package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityIdenticalTexts(t *testing.T) {
	text := "Senior Python developer building AWS services with Docker and Kubernetes"
	sim, err := Similarity(text, text)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)

	score, err := TextSimilarityScore(text, text)
	require.NoError(t, err)
	assert.Equal(t, 100.0, score, "相同文本的相似度应为100")
}

func TestSimilarityDisjointTexts(t *testing.T) {
	sim, err := Similarity("python django flask", "accounting payroll audit")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestSimilarityPartialOverlap(t *testing.T) {
	sim, err := Similarity("python developer aws", "python developer azure")
	require.NoError(t, err)
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}

func TestSimilarityEmptyVocabulary(t *testing.T) {
	_, err := Similarity("the and of", "a an it")
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = TextSimilarityScore("", "")
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestBuildVocabularyCap(t *testing.T) {
	doc := make(map[string]int)
	for i := 0; i < MaxVocabulary+200; i++ {
		doc["t"+string(rune('a'+i/676))+string(rune('a'+(i/26)%26))+string(rune('a'+i%26))] = 1
	}
	doc["zzzz"] = 5

	vocab := buildVocabulary([]map[string]int{doc})
	require.Len(t, vocab, MaxVocabulary)
	assert.Equal(t, "zzzz", vocab[0], "高频词优先")
	assert.Equal(t, "taaa", vocab[1], "同频按字母序")
}
