package core

import (
	"context"
	"fmt"
	"sort"
)

// ProductResolver is the product-lookup collaborator the mapper depends
// on. Implementations must make ConvertEPDToProduct idempotent: repeated
// calls with an EPD of identical id, version, source and overrides yield
// an equivalent product rather than creating duplicates.
type ProductResolver interface {
	ProductByURI(ctx context.Context, uri string) (Product, error)
	ConvertEPDToProduct(ctx context.Context, epd EPD) (Product, error)
}

// ValidationError reports the first bidirectional-completeness violation
// between a buildup's products map and its results map.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// Validate enforces that every product reference has a numeric quantity
// result and every result has a product reference. The first violation
// found is returned; keys are checked in sorted order so the outcome is
// deterministic.
func Validate(mapping ProductReferenceMap, results map[string]ResultEntry) error {
	for _, key := range sortedKeys(mapping) {
		entry, ok := results[key]
		if !ok {
			return ValidationError{Message: fmt.Sprintf("Product with ID %s does not have a corresponding result", key)}
		}
		if entry.Quantity == nil {
			if entry.NonNumeric {
				return ValidationError{Message: fmt.Sprintf("Quantity for product ID %s is not a number", key)}
			}
			return ValidationError{Message: fmt.Sprintf("Result for product ID %s is missing a quantity property", key)}
		}
	}
	for _, key := range sortedKeys(results) {
		if _, ok := mapping[key]; !ok {
			return ValidationError{Message: fmt.Sprintf("Result with ID %s does not have a corresponding product", key)}
		}
	}
	return nil
}

// Mapper resolves buildup product references into concrete products.
type Mapper struct {
	resolver ProductResolver
}

// NewMapper constructs a mapper backed by the given product resolver.
func NewMapper(resolver ProductResolver) *Mapper {
	return &Mapper{resolver: resolver}
}

// ResolveReference turns one product reference into a mapped entity.
// Inline EPD snapshots are converted (and deduplicated) into products;
// stored references are looked up by URI.
func (m *Mapper) ResolveReference(ctx context.Context, ref ProductReference, quantity float64, mappingKey string) (MappedEntity, error) {
	switch r := ref.(type) {
	case ActualProduct:
		if r.EPD.ID == "" {
			return MappedEntity{}, fmt.Errorf("inline epd for product %s is missing an id", mappingKey)
		}
		product, err := m.resolver.ConvertEPDToProduct(ctx, r.EPD)
		if err != nil {
			return MappedEntity{}, fmt.Errorf("convert inline epd for product %s: %w", mappingKey, err)
		}
		return MappedEntity{Entity: product, Quantity: quantity, MappingKey: mappingKey}, nil
	case StoredProductRef:
		if r.URI == "" {
			return MappedEntity{}, fmt.Errorf("product reference %s has no uri", mappingKey)
		}
		product, err := m.resolver.ProductByURI(ctx, r.URI)
		if err != nil {
			return MappedEntity{}, fmt.Errorf("resolve product %s by uri %s: %w", mappingKey, r.URI, err)
		}
		return MappedEntity{Entity: product, Quantity: quantity, MappingKey: mappingKey}, nil
	default:
		return MappedEntity{}, fmt.Errorf("unsupported product reference type %T for product %s", ref, mappingKey)
	}
}

// MapAll validates the mapping against its results and resolves every
// reference, grouping the mapped entities by the mapping element id
// carried in each reference's metadata. Multiple mapping keys may
// collapse into the same element id; within a group, list order follows
// sorted mapping-key order. Any validation, metadata, or resolution
// failure aborts the whole mapping.
func (m *Mapper) MapAll(ctx context.Context, mapping ProductReferenceMap, results map[string]ResultEntry) (MappedEntities, error) {
	if err := Validate(mapping, results); err != nil {
		return nil, err
	}
	mapped := make(MappedEntities)
	for _, key := range sortedKeys(mapping) {
		ref := mapping[key]
		elementID, err := ref.ElementID()
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", key, err)
		}
		entity, err := m.ResolveReference(ctx, ref, *results[key].Quantity, key)
		if err != nil {
			return nil, err
		}
		mapped[elementID] = append(mapped[elementID], entity)
	}
	return mapped, nil
}

// GenerateMappingFromBuildups maps every buildup, keyed by buildup id.
// It fails fast: a buildup without results, or any mapping failure,
// aborts the whole batch.
func (m *Mapper) GenerateMappingFromBuildups(ctx context.Context, buildups []Buildup) (map[int64]MappedEntities, error) {
	out := make(map[int64]MappedEntities, len(buildups))
	for _, buildup := range buildups {
		if buildup.Results == nil {
			return nil, fmt.Errorf("buildup %d has no results", buildup.ID)
		}
		mapped, err := m.MapAll(ctx, buildup.Products, buildup.Results)
		if err != nil {
			return nil, fmt.Errorf("buildup %d: %w", buildup.ID, err)
		}
		out[buildup.ID] = mapped
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
