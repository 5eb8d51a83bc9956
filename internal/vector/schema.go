// Package vector defines the shared index collection and makes sure it exists
// before the first write.
package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/kismet-tech/NLWeb/internal/indexer"
)

// Property names of the collection. Site and URL are exact-match keys.
const (
	PropName        = "name"
	PropURL         = "url"
	PropSite        = "site"
	PropText        = "text"
	PropTypeTag     = "typeTag"
	PropDescription = "description"
	PropSchemaJSON  = "schemaJson"
)

// SchemaClient defines the schema operations EnsureCollection needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func Properties() []*models.Property {
	exact := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}, Tokenization: models.PropertyTokenizationField}
	}
	searchable := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}}
	}
	return []*models.Property{
		searchable(PropName),
		exact(PropURL),
		exact(PropSite),
		searchable(PropText),
		exact(PropTypeTag),
		searchable(PropDescription),
		{Name: PropSchemaJSON, DataType: []string{"text"}, IndexSearchable: new(bool)},
	}
}

// Class is the collection definition: externally supplied vectors compared
// by cosine distance.
func Class() *models.Class {
	return &models.Class{
		Class:           indexer.CollectionName,
		Description:     "NLWeb documents, partitioned by site",
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]any{
			"distance": indexer.Distance,
		},
		Properties: Properties(),
	}
}

// EnsureCollection creates the collection when absent. When it exists,
// missing properties are added and nothing else changes.
func EnsureCollection(ctx context.Context, client SchemaClient) error {
	want := Class()

	exists, err := client.ClassExists(ctx, want.Class)
	if err != nil {
		return fmt.Errorf("check class %s: %w", want.Class, err)
	}
	if !exists {
		slog.InfoContext(ctx, "creating collection", "class", want.Class, "distance", indexer.Distance, "dimensions", indexer.VectorSize)
		return client.CreateClass(ctx, want)
	}

	class, err := client.GetClass(ctx, want.Class)
	if err != nil {
		return fmt.Errorf("get class %s: %w", want.Class, err)
	}

	if cfg, ok := class.VectorIndexConfig.(map[string]any); ok {
		if d, _ := cfg["distance"].(string); d != "" && d != indexer.Distance {
			slog.WarnContext(ctx, "collection uses a different distance metric", "class", want.Class, "distance", d, "expected", indexer.Distance)
		}
	}

	existing := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range want.Properties {
		if existing[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, want.Class, p); err != nil {
			return fmt.Errorf("add property %s: %w", p.Name, err)
		}
	}
	return nil
}
