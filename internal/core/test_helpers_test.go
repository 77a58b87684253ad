package core

import (
	"context"
	"fmt"
	"sync"

	"epdcore/pkg/domain"
)

func floatPtr(v float64) *float64 { return &v }

// stubResolver serves products from fixed maps and counts lookups so
// tests can assert how often the pipeline reached out.
type stubResolver struct {
	mu           sync.Mutex
	byURI        map[string]Product
	uriCalls     int
	convertCalls int
	failURIs     map[string]error
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		byURI:    make(map[string]Product),
		failURIs: make(map[string]error),
	}
}

func (r *stubResolver) addProduct(p Product) {
	r.byURI[p.URI()] = p
}

func (r *stubResolver) ProductByURI(_ context.Context, uri string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uriCalls++
	if err, ok := r.failURIs[uri]; ok {
		return Product{}, err
	}
	p, ok := r.byURI[uri]
	if !ok {
		return Product{}, fmt.Errorf("product with uri %s not found", uri)
	}
	return p, nil
}

func (r *stubResolver) ConvertEPDToProduct(_ context.Context, epd EPD) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convertCalls++
	snapshot := epd
	return Product{
		ID:         int64(1000 + r.convertCalls),
		Name:       epd.Name,
		EPDID:      epd.ID,
		EPDVersion: epd.Version,
		SourceName: epd.Source.Name,
		EPD:        &snapshot,
	}, nil
}

func (r *stubResolver) calls() (uri, convert int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uriCalls, r.convertCalls
}

// storedRef builds a stored product reference carrying a mapping element id.
func storedRef(uri, elementID string) domain.StoredProductRef {
	return domain.StoredProductRef{
		URI: uri,
		Overrides: &domain.ReferenceOverrides{
			MetaData: map[string]any{"model_mapping_element_id": elementID},
		},
	}
}

// beamProduct is the canonical fixture: product "src.123" carrying an EPD
// with gwp a1a3 = 100.
func beamProduct() Product {
	epd := EPD{
		ID:      "123",
		Version: "1",
		Source:  domain.EPDSource{Name: "src"},
		Impacts: map[Indicator]map[LifecycleStage]float64{
			"gwp": {domain.StageA1A3: 100},
		},
	}
	return Product{
		ID:         1,
		Name:       "Steel beam",
		EPDID:      "123",
		EPDVersion: "1",
		SourceName: "src",
		EPD:        &epd,
	}
}
