package chunker

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/quizgest/internal/doctree"
)

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joined(chunks []doctree.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("lorem ", n))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	// Runes, not bytes.
	assert.Equal(t, 1, EstimateTokens("éééé"))
}

func TestChunkDocument_SmallDocumentFitsOneChunk(t *testing.T) {
	doc := &doctree.Document{Sections: []doctree.Section{
		{Title: "Unit 1", Content: "Sets and relations.", Page: 1},
		{Title: "Unit 2", Content: "Functions.", Page: 2},
	}}
	chunks, err := ChunkDocument(doc, Config{MaxTokens: 500, MinTokens: 10})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "chunk-1", c.ID)
	assert.Equal(t, "Unit 1", c.Title)
	assert.Equal(t, doc.Text(), c.Text)
	assert.Equal(t, EstimateTokens(c.Text), c.Tokens)
	assert.Equal(t, 1, c.PageStart)
	assert.Equal(t, 2, c.PageEnd)
	assert.Equal(t, []string{"Unit 1", "Unit 2"}, c.Keywords[:2])
}

func TestChunkDocument_PacksSectionsUpToCeiling(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("abcd ", 30))
	doc := &doctree.Document{Sections: []doctree.Section{
		{Title: "Alpha", Content: body},
		{Title: "Bravo", Content: body},
		{Title: "Gamma", Content: body},
		{Title: "Delta", Content: body},
	}}
	chunks, err := ChunkDocument(doc, Config{MaxTokens: 100, MinTokens: 10})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Alpha", chunks[0].Title)
	assert.Equal(t, "Gamma", chunks[1].Title)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Gamma\n"))
	assert.Contains(t, chunks[0].Keywords, "Bravo")
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Tokens, 100)
	}
}

func TestChunkDocument_BelowFloorTopsUpFromNextSection(t *testing.T) {
	doc := &doctree.Document{Sections: []doctree.Section{
		{Title: "Intro", Content: "Hi."},
		{Title: "Big", Content: words(40) + "\n\n" + words(40)},
	}}
	chunks, err := ChunkDocument(doc, Config{MaxTokens: 100, MinTokens: 20})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Intro", chunks[0].Title)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "Intro\nHi.\n\nBig\n"))
	assert.GreaterOrEqual(t, chunks[0].Tokens, 20)
	assert.Equal(t, "Big (continued)", chunks[1].Title)
	assert.Equal(t, words(40), chunks[1].Text)
	assert.Equal(t, normalize(doc.Text()), normalize(joined(chunks)))
}

func TestChunkDocument_OversizedSectionSplitsOnParagraphs(t *testing.T) {
	paras := make([]string, 5)
	for i := range paras {
		paras[i] = words(40)
	}
	doc := &doctree.Document{Sections: []doctree.Section{
		{Title: "Big", Content: strings.Join(paras, "\n\n")},
	}}
	chunks, err := ChunkDocument(doc, Config{MaxTokens: 100, MinTokens: 10})
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	assert.Equal(t, "Big", chunks[0].Title)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.Tokens, 100)
		if i > 0 {
			assert.Equal(t, "Big (continued)", c.Title)
		}
	}
}

func TestChunkText_SentenceFallback(t *testing.T) {
	sentence := words(33) + "."
	text := sentence + " " + sentence + " " + sentence
	chunks, err := ChunkText(text, Config{MaxTokens: 60, MinTokens: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, sentence, c.Text)
		assert.Equal(t, 50, c.Tokens)
	}
}

func TestChunkText_LineMarkers(t *testing.T) {
	chunks, err := ChunkText("a\nb\n\nc", Config{MaxTokens: 1, Method: MethodByParagraph})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "a\nb", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.Equal(t, "c", chunks[1].Text)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 4, chunks[1].EndLine)
}

func TestChunkDocument_EmptyDocument(t *testing.T) {
	chunks, err := ChunkDocument(&doctree.Document{}, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", DefaultConfig(), true},
		{"zero ceiling", Config{MaxTokens: -1, Method: MethodByHeading}, false},
		{"floor above ceiling", Config{MaxTokens: 10, MinTokens: 11, Method: MethodByHeading}, false},
		{"unknown method", Config{MaxTokens: 10, Method: "by_magic"}, false},
		{"paragraph", Config{MaxTokens: 10, Method: MethodByParagraph}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	assert.Equal(t, DefaultConfig(), cfg)

	small := Config{MaxTokens: 50}.WithDefaults()
	assert.Equal(t, 0, small.MinTokens)
	assert.Equal(t, MethodByHeading, small.Method)
}

// Every chunk respects the ceiling and the chunks reconstitute the source.
func TestChunkDocument_CeilingAndLosslessProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	vocab := []string{"set", "relation", "graph", "proof", "lemma", "induction", "tree", "cycle"}

	sentence := func() string {
		n := 3 + rng.IntN(15)
		w := make([]string, n)
		for i := range w {
			w[i] = vocab[rng.IntN(len(vocab))]
		}
		return strings.Join(w, " ") + "."
	}

	for docN := 0; docN < 20; docN++ {
		var sections []doctree.Section
		for s := 0; s < 1+rng.IntN(8); s++ {
			var paras []string
			for p := 0; p < rng.IntN(5); p++ {
				var sents []string
				for k := 0; k < 1+rng.IntN(6); k++ {
					sents = append(sents, sentence())
				}
				paras = append(paras, strings.Join(sents, " "))
			}
			sections = append(sections, doctree.Section{Title: "Heading " + vocab[rng.IntN(len(vocab))], Content: strings.Join(paras, "\n\n")})
		}
		doc := &doctree.Document{Sections: sections}

		for _, ceiling := range []int{20, 50, 200} {
			for _, floor := range []int{0, ceiling / 2, ceiling} {
				for _, method := range []Method{MethodByHeading, MethodByParagraph} {
					cfg := Config{MaxTokens: ceiling, MinTokens: floor, Method: method}
					chunks, err := ChunkDocument(doc, cfg)
					require.NoError(t, err)
					for _, c := range chunks {
						assert.LessOrEqual(t, c.Tokens, ceiling, "doc %d cfg %+v chunk %d", docN, cfg, c.Index)
					}
					assert.Equal(t, normalize(doc.Text()), normalize(joined(chunks)), "doc %d cfg %+v", docN, cfg)
				}
			}
		}
	}
}
