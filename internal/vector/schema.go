package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func keyword(name string) *models.Property {
	return &models.Property{Name: name, DataType: []string{"text"}, Tokenization: "field"}
}

// Properties lists the BrochureChunk schema. Identifier fields use field
// tokenization so equality filters match the whole value.
func Properties() []*models.Property {
	return []*models.Property{
		{Name: "text", DataType: []string{"text"}},
		keyword("tenantId"),
		keyword("docId"),
		{Name: "pageNum", DataType: []string{"int"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		keyword("imageRef"),
		keyword("sourceRef"),
	}
}

// EnsureSchema creates the chunk class when missing and adds any properties
// an older deployment lacks.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := Properties()

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A chunk of one brochure page",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
