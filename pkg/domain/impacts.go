package domain

// LifecycleStage is a raw lifecycle stage code as reported in an EPD
// (EN 15804 module codes, lowercased: a1a3, a4, ... d).
type LifecycleStage string

// Raw lifecycle stage codes known to the calculator.
const (
	StageA1A3 LifecycleStage = "a1a3"
	StageA4   LifecycleStage = "a4"
	StageA5   LifecycleStage = "a5"
	StageB1   LifecycleStage = "b1"
	StageB2   LifecycleStage = "b2"
	StageB3   LifecycleStage = "b3"
	StageB4   LifecycleStage = "b4"
	StageB5   LifecycleStage = "b5"
	StageC1   LifecycleStage = "c1"
	StageC2   LifecycleStage = "c2"
	StageC3   LifecycleStage = "c3"
	StageC4   LifecycleStage = "c4"
	StageD    LifecycleStage = "d"
)

// LifecycleGroup names one of the six reporting groups impact values are
// aggregated into.
type LifecycleGroup string

// The six lifecycle groups. Together their stage sets partition the full
// known stage-code set with no overlap.
const (
	GroupProduction   LifecycleGroup = "Production"
	GroupConstruction LifecycleGroup = "Construction"
	GroupOperation    LifecycleGroup = "Operation"
	GroupDisassembly  LifecycleGroup = "Disassembly"
	GroupDisposal     LifecycleGroup = "Disposal"
	GroupReuse        LifecycleGroup = "Reuse"
)

// lifecycleGroups maps each reporting group to the raw stage codes it sums.
var lifecycleGroups = map[LifecycleGroup][]LifecycleStage{
	GroupProduction:   {StageA1A3},
	GroupConstruction: {StageA4, StageA5},
	GroupOperation:    {StageB1, StageB2, StageB3, StageB4, StageB5},
	GroupDisassembly:  {StageC1, StageC2},
	GroupDisposal:     {StageC3, StageC4},
	GroupReuse:        {StageD},
}

// LifecycleGroups returns a copy of the group-to-stages table.
func LifecycleGroups() map[LifecycleGroup][]LifecycleStage {
	out := make(map[LifecycleGroup][]LifecycleStage, len(lifecycleGroups))
	for group, stages := range lifecycleGroups {
		out[group] = append([]LifecycleStage(nil), stages...)
	}
	return out
}

// KnownStages returns every raw stage code covered by the lifecycle groups.
func KnownStages() []LifecycleStage {
	return []LifecycleStage{
		StageA1A3, StageA4, StageA5,
		StageB1, StageB2, StageB3, StageB4, StageB5,
		StageC1, StageC2, StageC3, StageC4,
		StageD,
	}
}

// CalculatedImpact holds the summed, quantity-scaled value of one
// indicator per lifecycle group.
type CalculatedImpact struct {
	Production   float64 `json:"Production"`
	Construction float64 `json:"Construction"`
	Operation    float64 `json:"Operation"`
	Disassembly  float64 `json:"Disassembly"`
	Disposal     float64 `json:"Disposal"`
	Reuse        float64 `json:"Reuse"`
}

// Group returns the value stored for the given lifecycle group.
func (c CalculatedImpact) Group(group LifecycleGroup) float64 {
	switch group {
	case GroupProduction:
		return c.Production
	case GroupConstruction:
		return c.Construction
	case GroupOperation:
		return c.Operation
	case GroupDisassembly:
		return c.Disassembly
	case GroupDisposal:
		return c.Disposal
	case GroupReuse:
		return c.Reuse
	default:
		return 0
	}
}

// SetGroup stores a value for the given lifecycle group.
func (c *CalculatedImpact) SetGroup(group LifecycleGroup, value float64) {
	switch group {
	case GroupProduction:
		c.Production = value
	case GroupConstruction:
		c.Construction = value
	case GroupOperation:
		c.Operation = value
	case GroupDisassembly:
		c.Disassembly = value
	case GroupDisposal:
		c.Disposal = value
	case GroupReuse:
		c.Reuse = value
	}
}
