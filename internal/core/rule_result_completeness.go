package core

import (
	"context"
	"fmt"

	"epdcore/pkg/domain"
)

// NewResultCompletenessRule returns a rule warning about buildups whose
// products and results maps are out of step. Incomplete buildups still
// commit (the processor degrades them to partial results) but the
// warning surfaces the problem at write time.
func NewResultCompletenessRule() domain.Rule {
	return resultCompletenessRule{}
}

type resultCompletenessRule struct{}

func (resultCompletenessRule) Name() string { return "result_completeness" }

func (resultCompletenessRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, buildup := range view.ListBuildups() {
		if buildup.Results == nil {
			continue
		}
		if err := Validate(buildup.Products, buildup.Results); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "result_completeness",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("buildup %s: %v", buildup.Name, err),
				Entity:   domain.EntityBuildup,
				EntityID: buildup.ID,
			})
		}
	}
	return res, nil
}
