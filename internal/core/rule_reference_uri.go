package core

import (
	"context"
	"fmt"

	"epdcore/pkg/domain"
)

// NewReferenceURIRule returns a rule warning about stored product
// references with empty or malformed URIs. Such references commit but
// can never resolve during mapping.
func NewReferenceURIRule() domain.Rule {
	return referenceURIRule{}
}

type referenceURIRule struct{}

func (referenceURIRule) Name() string { return "reference_uri" }

func (referenceURIRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, buildup := range view.ListBuildups() {
		for key, ref := range buildup.Products {
			stored, ok := ref.(domain.StoredProductRef)
			if !ok {
				continue
			}
			if _, _, valid := domain.SplitURI(stored.URI); !valid {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "reference_uri",
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("buildup %s product %s references unusable uri %q", buildup.Name, key, stored.URI),
					Entity:   domain.EntityBuildup,
					EntityID: buildup.ID,
				})
			}
		}
	}
	return res, nil
}
