// Package weaviate adapts a Weaviate vector database to the Searcher
// port. Materials literature is indexed as one class with a content
// field and a metadata blob; relevance comes from nearText certainty.
package weaviate

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

const defaultLimit = 5

// Searcher queries a Weaviate instance.
type Searcher struct {
	client    *weaviate.Client
	className string
	limit     int
}

// New creates the adapter from a base URL such as http://localhost:8080.
func New(rawURL, className string) (*Searcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse weaviate url: %w", err)
	}
	if u.Host == "" || u.Scheme == "" {
		return nil, fmt.Errorf("weaviate url %q missing scheme or host", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   u.Host,
		Scheme: u.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &Searcher{client: client, className: className, limit: defaultLimit}, nil
}

// Search implements ports.Searcher. Results come back ranked by
// certainty, highest first.
func (s *Searcher) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Permanent(fmt.Errorf("empty search query"))
	}

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "metadata"},
		{Name: "_additional { certainty }"},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(s.limit).
		Do(ctx)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("vector search: %w", err))
	}
	if len(result.Errors) > 0 {
		return nil, domain.Transient(fmt.Errorf("vector search: %s", result.Errors[0].Message))
	}
	return s.parseResults(result), nil
}

func (s *Searcher) parseResults(result *models.GraphQLResponse) []domain.SearchResult {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[s.className].([]interface{})
	if !ok {
		return nil
	}

	results := make([]domain.SearchResult, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		sr := domain.SearchResult{
			Content:  getString(m, "content"),
			Metadata: map[string]string{},
		}
		if meta := getString(m, "metadata"); meta != "" {
			sr.Metadata["source"] = meta
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				sr.RelevanceScore = certainty
			}
		}
		results = append(results, sr)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
