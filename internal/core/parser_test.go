package core

import (
	"encoding/json"
	"reflect"
	"testing"

	"epdcore/pkg/domain"
)

func TestParseEPDRoundTrip(t *testing.T) {
	original := EPD{
		ID:           "epd-1",
		Version:      "1.2.0",
		Name:         "CLT panel",
		DeclaredUnit: "m3",
		Source:       domain.EPDSource{Name: "okobau", URL: "https://example.test/epd-1"},
		Impacts: map[Indicator]map[LifecycleStage]float64{
			"gwp":  {domain.StageA1A3: 100, domain.StageC3: 4},
			"odp":  {domain.StageA4: 0.5},
			"pocp": {},
		},
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed := ParseEPD(string(data))
	if parsed == nil {
		t.Fatal("expected parse to succeed")
	}
	if !reflect.DeepEqual(*parsed, original) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *parsed, original)
	}
}

func TestParseEPDPassthrough(t *testing.T) {
	epd := &EPD{ID: "epd-2"}
	if got := ParseEPD(epd); got != epd {
		t.Fatal("pointer input must pass through unchanged")
	}
	byValue := ParseEPD(EPD{ID: "epd-3"})
	if byValue == nil || byValue.ID != "epd-3" {
		t.Fatalf("value input: %+v", byValue)
	}
}

func TestParseEPDMalformed(t *testing.T) {
	inputs := []any{
		"{invalid json",
		"",
		[]byte("not json"),
		json.RawMessage(`{"id":`),
		nil,
		make(chan int), // unmarshalable
	}
	for _, input := range inputs {
		if got := ParseEPD(input); got != nil {
			t.Fatalf("ParseEPD(%v) = %+v, want nil", input, got)
		}
	}
}

func TestParseEPDGenericValue(t *testing.T) {
	generic := map[string]any{
		"id":      "epd-4",
		"version": "1",
		"impacts": map[string]any{"gwp": map[string]any{"a1a3": 10.0}},
	}
	parsed := ParseEPD(generic)
	if parsed == nil || parsed.ID != "epd-4" {
		t.Fatalf("generic input: %+v", parsed)
	}
	if got := parsed.Impacts["gwp"][domain.StageA1A3]; got != 10 {
		t.Fatalf("impact value %v", got)
	}
}
