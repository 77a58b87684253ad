// Package core implements the environmental impact aggregation pipeline:
// parsing EPD payloads, calculating lifecycle-grouped impact values,
// resolving buildup product references, and incrementally processing and
// caching derived buildup results.
package core

import "epdcore/pkg/domain"

// Aliases for the shared domain vocabulary so the package reads without
// qualification.
type (
	EPD                 = domain.EPD
	EPDMetaData         = domain.EPDMetaData
	Indicator           = domain.Indicator
	LifecycleStage      = domain.LifecycleStage
	LifecycleGroup      = domain.LifecycleGroup
	CalculatedImpact    = domain.CalculatedImpact
	Product             = domain.Product
	Buildup             = domain.Buildup
	ResultEntry         = domain.ResultEntry
	ProductReference    = domain.ProductReference
	ProductReferenceMap = domain.ProductReferenceMap
	ActualProduct       = domain.ActualProduct
	StoredProductRef    = domain.StoredProductRef
	MappedEntity        = domain.MappedEntity
	MappedEntities      = domain.MappedEntities
	ProcessedProduct    = domain.ProcessedProduct
	ProcessedBuildup    = domain.ProcessedBuildup
	CombinedBuildup     = domain.CombinedBuildup
	Result              = domain.Result
	Violation           = domain.Violation
	RulesEngine         = domain.RulesEngine
	Rule                = domain.Rule
	RuleView            = domain.RuleView
	Change              = domain.Change
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// DefaultRulesEngine returns an engine with the standard rule set
// registered: result completeness, snapshot deduplication, and reference
// URI checks.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewResultCompletenessRule())
	engine.Register(NewSnapshotDedupRule())
	engine.Register(NewReferenceURIRule())
	return engine
}
