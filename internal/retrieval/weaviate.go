package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/dgallion1/quizgest/internal/doctree"
)

// DefaultClass is the Weaviate class chunks are stored under.
const DefaultClass = "MaterialChunk"

// scopeProps maps scope keys to class properties.
var scopeProps = map[string]string{
	ScopeMaterial: "materialId",
	ScopeCourse:   "courseId",
}

// Weaviate runs hybrid (keyword + vector) search over chunks in one class.
// Vectors come from the class vectorizer configured on the server.
type Weaviate struct {
	client *weaviate.Client
	class  string
}

func NewWeaviate(client *weaviate.Client, class string) *Weaviate {
	if class == "" {
		class = DefaultClass
	}
	return &Weaviate{client: client, class: class}
}

// NewWeaviateFromConfig connects to host (for example "localhost:8080").
func NewWeaviateFromConfig(host, scheme, class string) (*Weaviate, error) {
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}
	return NewWeaviate(client, class), nil
}

func (w *Weaviate) Index(ctx context.Context, courseID, materialID string, chunks []doctree.Chunk) error {
	for _, c := range chunks {
		_, err := w.client.Data().Creator().
			WithClassName(w.class).
			WithProperties(map[string]interface{}{
				"content":    c.Text,
				"title":      c.Title,
				"materialId": materialID,
				"courseId":   courseID,
				"chunkIndex": c.Index,
			}).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("index chunk %d: %w", c.Index, err)
		}
	}
	return nil
}

func (w *Weaviate) Retrieve(ctx context.Context, query string, scope map[string]string, topK int) ([]Passage, error) {
	hybrid := w.client.GraphQL().HybridArgumentBuilder().WithQuery(query)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "materialId"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	get := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithHybrid(hybrid).
		WithLimit(topK).
		WithFields(fields...)
	if where, err := scopeFilter(scope); err != nil {
		return nil, err
	} else if where != nil {
		get = get.WithWhere(where)
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var out []Passage
	data, _ := res.Data["Get"].(map[string]interface{})
	hits, _ := data[w.class].([]interface{})
	for _, h := range hits {
		props, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		var p Passage
		p.Content, _ = props["content"].(string)
		p.MaterialID, _ = props["materialId"].(string)
		if idx, ok := props["chunkIndex"].(float64); ok {
			p.ChunkIndex = int(idx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			p.Score = parseScore(additional["score"])
		}
		if p.Content != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func scopeFilter(scope map[string]string) (*filters.WhereBuilder, error) {
	var operands []*filters.WhereBuilder
	for key, val := range scope {
		prop, ok := scopeProps[key]
		if !ok {
			return nil, fmt.Errorf("unknown scope filter %q", key)
		}
		operands = append(operands, filters.Where().
			WithPath([]string{prop}).
			WithOperator(filters.Equal).
			WithValueString(val))
	}
	switch len(operands) {
	case 0:
		return nil, nil
	case 1:
		return operands[0], nil
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands), nil
	}
}

// parseScore accepts the score as a string or a number; servers differ.
func parseScore(v interface{}) float32 {
	switch s := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(s, 32)
		return float32(f)
	case float64:
		return float32(s)
	}
	return 0
}
