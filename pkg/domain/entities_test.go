package domain

import (
	"testing"
	"time"
)

func TestProductURI(t *testing.T) {
	p := Product{SourceName: "okobau", EPDID: "abc-123"}
	if got := p.URI(); got != "okobau.abc-123" {
		t.Fatalf("URI() = %q", got)
	}
}

func TestSplitURI(t *testing.T) {
	source, id, ok := SplitURI("okobau.abc-123")
	if !ok || source != "okobau" || id != "abc-123" {
		t.Fatalf("SplitURI = (%q, %q, %v)", source, id, ok)
	}
	for _, bad := range []string{"", "noseparator", ".leading", "trailing."} {
		if _, _, ok := SplitURI(bad); ok {
			t.Fatalf("SplitURI(%q) should fail", bad)
		}
	}
}

func TestSnapshotMatches(t *testing.T) {
	epd := EPD{ID: "e1", Version: "1", Source: EPDSource{Name: "src"}}
	product := Product{EPDID: "e1", EPDVersion: "1", SourceName: "src"}
	if !product.SnapshotMatches(epd) {
		t.Fatal("expected match on identity")
	}
	if product.SnapshotMatches(EPD{ID: "e1", Version: "2", Source: EPDSource{Name: "src"}}) {
		t.Fatal("version mismatch should not match")
	}

	withOverrides := epd
	withOverrides.MetaData = EPDMetaData{Overrides: map[string]any{"thickness": 0.2}}
	if product.SnapshotMatches(withOverrides) {
		t.Fatal("product without epd should not match overridden epd")
	}
	snapshot := withOverrides
	product.EPD = &snapshot
	if !product.SnapshotMatches(withOverrides) {
		t.Fatal("expected match with equal overrides")
	}
	other := withOverrides
	other.MetaData = EPDMetaData{Overrides: map[string]any{"thickness": 0.3}}
	if product.SnapshotMatches(other) {
		t.Fatal("different overrides should not match")
	}
}

func TestNeedsReprocessing(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		updated time.Time
		local   time.Time
		want    bool
	}{
		{name: "buildup newer", updated: base.Add(time.Minute), local: base, want: true},
		{name: "result newer", updated: base, local: base.Add(time.Minute), want: false},
		{name: "equal timestamps", updated: base, local: base, want: false},
		{name: "missing buildup timestamp", local: base, want: false},
		{name: "never processed", updated: base, want: true},
		{name: "both missing", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ProcessedBuildup{LastLocalUpdate: tc.local}
			buildup := Buildup{UpdatedAt: tc.updated}
			if got := result.NeedsReprocessing(buildup); got != tc.want {
				t.Fatalf("NeedsReprocessing = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmptyProcessedBuildup(t *testing.T) {
	empty := EmptyProcessedBuildup(7)
	if empty.BuildupID != 7 {
		t.Fatalf("id = %d", empty.BuildupID)
	}
	if empty.FullyProcessed {
		t.Fatal("empty result must not be fully processed")
	}
	if empty.MappedProducts == nil || empty.ProcessedProducts == nil {
		t.Fatal("empty result must be renderable: maps and slices non-nil")
	}
	if len(empty.MappedProducts) != 0 || len(empty.ProcessedProducts) != 0 {
		t.Fatal("empty result must carry no products")
	}
}

func TestResultHasBlocking(t *testing.T) {
	var r Result
	if r.HasBlocking() {
		t.Fatal("empty result should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "x", Severity: SeverityWarn}}})
	if r.HasBlocking() {
		t.Fatal("warn should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "y", Severity: SeverityBlock}}})
	if !r.HasBlocking() {
		t.Fatal("block severity should block")
	}
}
