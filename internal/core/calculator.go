package core

import "epdcore/pkg/domain"

// ImpactValue returns the raw value an EPD declares for one indicator at
// one lifecycle stage. A nil EPD, an absent indicator, or an absent stage
// all yield 0; the calculator never fails on sparse data.
func ImpactValue(epd *EPD, indicator Indicator, stage LifecycleStage) float64 {
	if epd == nil {
		return 0
	}
	stages, ok := epd.Impacts[indicator]
	if !ok {
		return 0
	}
	return stages[stage]
}

// CalculateImpacts computes, for every indicator the EPD declares, the
// six lifecycle-group sums scaled by quantity. The result is a pure
// function of its inputs; a nil EPD or one without impacts produces an
// empty map.
func CalculateImpacts(epd *EPD, quantity float64) map[Indicator]CalculatedImpact {
	impacts := make(map[Indicator]CalculatedImpact)
	if epd == nil || len(epd.Impacts) == 0 {
		return impacts
	}
	groups := domain.LifecycleGroups()
	for indicator := range epd.Impacts {
		var calc CalculatedImpact
		for group, stages := range groups {
			var sum float64
			for _, stage := range stages {
				sum += ImpactValue(epd, indicator, stage)
			}
			calc.SetGroup(group, sum*quantity)
		}
		impacts[indicator] = calc
	}
	return impacts
}
