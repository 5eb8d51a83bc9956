package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/kismet-tech/NLWeb/internal/indexer"
	"github.com/kismet-tech/NLWeb/internal/retrieval"
	"github.com/kismet-tech/NLWeb/internal/vector"
)

// maxDeleteRounds bounds DeleteSite when the server keeps reporting matches.
const maxDeleteRounds = 1000

var ErrNoProgress = errors.New("batch delete made no progress")

type Store struct {
	client    *weaviate.Client
	className string
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, className: indexer.CollectionName}
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	return vector.EnsureCollection(ctx, vector.NewWeaviateSchema(s.client))
}

func (s *Store) Upsert(ctx context.Context, points []indexer.Point) error {
	if len(points) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(points))
	for _, p := range points {
		d := p.Document
		objects = append(objects, &models.Object{
			Class: s.className,
			ID:    strfmt.UUID(p.ID),
			Properties: map[string]interface{}{
				vector.PropName:        d.Name,
				vector.PropURL:         d.URL,
				vector.PropSite:        d.Site,
				vector.PropText:        d.Text,
				vector.PropTypeTag:     d.TypeTag,
				vector.PropDescription: d.Description,
				vector.PropSchemaJSON:  d.SchemaJSON,
			},
			Vector: p.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}

	var failures []string
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", r.ID, e.Message))
			}
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d objects rejected: %s", len(failures), len(objects), strings.Join(failures, "; "))
	}
	return nil
}

func siteFilter(site string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{vector.PropSite}).
		WithOperator(filters.Equal).
		WithValueText(site)
}

// DeleteSite repeats the filtered batch delete until nothing matches, since a
// single call is capped by the server's result limit.
func (s *Store) DeleteSite(ctx context.Context, site string) (int64, error) {
	var deleted int64
	for round := 0; round < maxDeleteRounds; round++ {
		resp, err := s.client.Batch().ObjectsBatchDeleter().
			WithClassName(s.className).
			WithOutput("minimal").
			WithWhere(siteFilter(site)).
			Do(ctx)
		if err != nil {
			return deleted, err
		}
		if resp == nil || resp.Results == nil || resp.Results.Matches == 0 {
			return deleted, nil
		}

		deleted += resp.Results.Successful
		slog.DebugContext(ctx, "batch delete round", "site", site, "round", round, "matches", resp.Results.Matches, "successful", resp.Results.Successful, "failed", resp.Results.Failed)
		if resp.Results.Successful == 0 {
			return deleted, fmt.Errorf("%w: %d matches, %d failed", ErrNoProgress, resp.Results.Matches, resp.Results.Failed)
		}
	}
	return deleted, fmt.Errorf("%w: gave up after %d rounds", ErrNoProgress, maxDeleteRounds)
}

// CountSite returns the number of points stored for site.
func (s *Store) CountSite(ctx context.Context, site string) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithWhere(siteFilter(site)).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	groups, ok := agg[s.className].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// Search returns the nearest documents to vec, scoped to site when non-empty.
func (s *Store) Search(ctx context.Context, vec []float32, site string, limit int) ([]retrieval.SearchResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: vector.PropName},
		{Name: vector.PropURL},
		{Name: vector.PropSite},
		{Name: vector.PropText},
		{Name: vector.PropTypeTag},
		{Name: vector.PropDescription},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...)
	if site != "" {
		query = query.WithWhere(siteFilter(site))
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}

	var results []retrieval.SearchResult
	get, _ := res.Data["Get"].(map[string]interface{})
	items, _ := get[s.className].([]interface{})
	for _, item := range items {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		r := retrieval.SearchResult{
			Name:        str(props[vector.PropName]),
			URL:         str(props[vector.PropURL]),
			Site:        str(props[vector.PropSite]),
			Text:        str(props[vector.PropText]),
			TypeTag:     str(props[vector.PropTypeTag]),
			Description: str(props[vector.PropDescription]),
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			r.ID = str(additional["id"])
			if d, ok := additional["distance"].(float64); ok {
				r.Distance = float32(d)
				r.Score = 1 - r.Distance
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
