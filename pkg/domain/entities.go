// Package domain defines the core entities, value types, and rule
// evaluation primitives used by epdcore: environmental product
// declarations (EPDs), product snapshots, buildups, and the derived
// impact-processing result types.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProduct identifies a stored product snapshot.
	EntityProduct EntityType = "product"
	// EntityBuildup identifies a buildup (assembly) record.
	EntityBuildup EntityType = "buildup"
)

// Indicator names an environmental impact category (e.g. "gwp").
type Indicator string

// EPDSource identifies the database or program an EPD was published in.
type EPDSource struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// EPD is a parsed environmental product declaration. Instances are
// immutable once produced by the parser; impact values are keyed by
// indicator and raw lifecycle stage code.
type EPD struct {
	ID           string                                 `json:"id"`
	Version      string                                 `json:"version"`
	Name         string                                 `json:"name,omitempty"`
	DeclaredUnit string                                 `json:"declared_unit,omitempty"`
	Source       EPDSource                              `json:"source"`
	Impacts      map[Indicator]map[LifecycleStage]float64 `json:"impacts"`
	MetaData     EPDMetaData                            `json:"metaData,omitempty"`
}

// Product wraps one EPD plus descriptive metadata. Persisted products
// carry a store-assigned numeric ID; snapshots synthesized from inline
// EPDs are deduplicated by EPD identity (see SnapshotMatches).
type Product struct {
	ID             int64     `json:"id"`
	Status         string    `json:"status,omitempty"`
	Name           string    `json:"epd_name"`
	DeclaredUnit   string    `json:"epd_declaredUnit,omitempty"`
	EPDID          string    `json:"epd_id"`
	EPDVersion     string    `json:"epd_version"`
	SourceName     string    `json:"epd_sourceName"`
	SourceURL      string    `json:"epd_sourceUrl,omitempty"`
	Subtype        string    `json:"epd_subtype,omitempty"`
	LinearDensity  *float64  `json:"epd_linear_density,omitempty"`
	GrossDensity   *float64  `json:"epd_gross_density,omitempty"`
	BulkDensity    *float64  `json:"epd_bulk_density,omitempty"`
	Grammage       *float64  `json:"epd_grammage,omitempty"`
	LayerThickness *float64  `json:"epd_layer_thickness,omitempty"`
	EPD            *EPD      `json:"epd,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// URI returns the product's lookup identity "<sourceName>.<epdID>".
func (p Product) URI() string {
	return p.SourceName + "." + p.EPDID
}

// SplitURI splits a product URI into its source name and EPD id parts.
// Both parts must be non-empty for ok to be true.
func SplitURI(uri string) (sourceName, epdID string, ok bool) {
	sourceName, epdID, found := strings.Cut(uri, ".")
	if !found || sourceName == "" || epdID == "" {
		return "", "", false
	}
	return sourceName, epdID, true
}

// SnapshotMatches reports whether the product is a snapshot of the given
// EPD: same EPD id, version, and source name, and — when the EPD carries
// metadata overrides — equal overrides on the product's own EPD.
func (p Product) SnapshotMatches(epd EPD) bool {
	if p.EPDID != epd.ID || p.EPDVersion != epd.Version || p.SourceName != epd.Source.Name {
		return false
	}
	if len(epd.MetaData.Overrides) == 0 {
		return true
	}
	if p.EPD == nil {
		return false
	}
	return equalAnyMaps(p.EPD.MetaData.Overrides, epd.MetaData.Overrides)
}

// ResultEntry is one quantity result supplied by the external modeling
// tool, keyed by the same mapping id as the buildup's product reference.
// Quantity is nil when the payload carried no usable numeric quantity;
// NonNumeric distinguishes a present-but-malformed quantity from an
// absent one so validation can name the right violation.
type ResultEntry struct {
	Quantity   *float64 `json:"quantity"`
	NonNumeric bool     `json:"-"`
}

// Buildup is an assembly of product references with a target quantity.
// Results is nil when the modeling tool has not supplied quantities yet;
// the processor degrades such buildups to a partial result.
type Buildup struct {
	ID        int64                  `json:"id"`
	Name      string                 `json:"name"`
	Status    string                 `json:"status,omitempty"`
	Quantity  float64                `json:"quantity"`
	Unit      string                 `json:"unit,omitempty"`
	Products  ProductReferenceMap    `json:"products"`
	Results   map[string]ResultEntry `json:"results"`
	MetaData  map[string]any         `json:"metaData,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

func equalAnyMaps(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !equalAny(av, bv) {
			return false
		}
	}
	return true
}

func equalAny(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && equalAnyMaps(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalAny(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
