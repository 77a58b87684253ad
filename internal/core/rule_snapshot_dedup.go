package core

import (
	"context"
	"fmt"

	"epdcore/pkg/domain"
)

// NewSnapshotDedupRule returns a blocking rule preventing two product
// snapshots with the same EPD identity (id, version, source, overrides)
// from coexisting. Duplicate snapshots would break the idempotence the
// mapper relies on when converting inline EPDs.
func NewSnapshotDedupRule() domain.Rule {
	return snapshotDedupRule{}
}

type snapshotDedupRule struct{}

func (snapshotDedupRule) Name() string { return "snapshot_dedup" }

func (snapshotDedupRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	products := view.ListProducts()
	for i, product := range products {
		if product.EPD == nil {
			continue
		}
		for _, other := range products[i+1:] {
			if other.ID == product.ID {
				continue
			}
			if other.SnapshotMatches(*product.EPD) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "snapshot_dedup",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("products %d and %d are snapshots of the same epd %s@%s from %s", product.ID, other.ID, product.EPDID, product.EPDVersion, product.SourceName),
					Entity:   domain.EntityProduct,
					EntityID: other.ID,
				})
			}
		}
	}
	return res, nil
}
