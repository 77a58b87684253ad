package domain

import "time"

// MappedEntity is the result of resolving one product reference: the
// concrete product, the quantity supplied for its mapping slot, and the
// buildup-side mapping key the reference was stored under.
type MappedEntity struct {
	Entity     Product `json:"entity"`
	Quantity   float64 `json:"quantity"`
	MappingKey string  `json:"elementMapId"`
}

// MappedEntities groups resolved entities by mapping element id. Several
// mapping keys may collapse into the same element id.
type MappedEntities map[string][]MappedEntity

// ProcessedProduct is a product extended with its parsed EPD, calculated
// impacts, resolved quantity, and mapping identifiers.
type ProcessedProduct struct {
	Product
	EPDObject *EPD                           `json:"epdObject"`
	Impacts   map[Indicator]CalculatedImpact `json:"calculatedImpacts"`
	Quantity  float64                        `json:"quantity"`
	// MappingKey is the buildup's products-map key the reference was
	// stored under; ElementID is the mapping element the product was
	// grouped into.
	MappingKey string `json:"elementMapId"`
	ElementID  string `json:"mappingId"`
}

// ProcessedBuildup is the cached derivation of one buildup: its products
// grouped by mapping element, the flat processed list, and whether every
// reference resolved. A partially processed value is always a valid,
// renderable shape.
type ProcessedBuildup struct {
	BuildupID         int64                         `json:"id"`
	MappedProducts    map[string][]ProcessedProduct `json:"mappedProducts"`
	ProcessedProducts []ProcessedProduct            `json:"processedProducts"`
	FullyProcessed    bool                          `json:"isFullyProcessed"`
	// LastLocalUpdate is when this result was computed; the zero value
	// means "never", which always loses a staleness comparison.
	LastLocalUpdate time.Time `json:"lastLocalUpdate,omitzero"`
}

// EmptyProcessedBuildup returns the partial shape used when a buildup has
// no results or its processing failed.
func EmptyProcessedBuildup(id int64) ProcessedBuildup {
	return ProcessedBuildup{
		BuildupID:         id,
		MappedProducts:    map[string][]ProcessedProduct{},
		ProcessedProducts: []ProcessedProduct{},
		FullyProcessed:    false,
	}
}

// CombinedBuildup merges a buildup with its processed result for callers.
type CombinedBuildup struct {
	Buildup
	Processed ProcessedBuildup `json:"processed"`
}

// NeedsReprocessing applies the incremental-update rule: a cached result
// is stale only when the buildup's updated_at is strictly newer than the
// result's computation time. Missing timestamps count as the epoch.
func (p ProcessedBuildup) NeedsReprocessing(b Buildup) bool {
	return b.UpdatedAt.After(p.LastLocalUpdate)
}
