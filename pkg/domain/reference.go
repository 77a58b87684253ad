package domain

import (
	"encoding/json"
	"fmt"
)

// ProductReference is a buildup's pointer to the product filling one
// mapping slot. It is a sealed union with two variants: an inline EPD
// snapshot (ActualProduct) or a pointer to a stored product
// (StoredProductRef). References are decoded once at the system boundary
// by DecodeProductReference; internal code only ever sees the variants.
type ProductReference interface {
	// ElementID returns the mapping element id carried in the
	// reference's metadata (model_mapping_element_id).
	ElementID() (string, error)

	isProductReference()
}

// ActualProduct is an inline EPD snapshot embedded directly in a buildup.
type ActualProduct struct {
	EPD EPD
}

func (ActualProduct) isProductReference() {}

// ElementID reads model_mapping_element_id from the inline EPD metadata.
func (a ActualProduct) ElementID() (string, error) {
	if a.EPD.MetaData.ModelMappingElementID == "" {
		return "", fmt.Errorf("product reference is missing model_mapping_element_id in meta_data")
	}
	return a.EPD.MetaData.ModelMappingElementID, nil
}

// MarshalJSON emits the inline EPD with the "actual" discriminator.
func (a ActualProduct) MarshalJSON() ([]byte, error) {
	type epdAlias EPD
	return json.Marshal(struct {
		Type string `json:"type"`
		epdAlias
	}{Type: "actual", epdAlias: epdAlias(a.EPD)})
}

// ReferenceOverrides carries per-buildup overrides attached to a stored
// product reference. MetaData is always an object here: payloads that
// encode meta_data as a JSON string are normalized during decoding.
type ReferenceOverrides struct {
	Name         string         `json:"name,omitempty"`
	DeclaredUnit string         `json:"declared_unit,omitempty"`
	MetaData     map[string]any `json:"meta_data,omitempty"`
}

// StoredProductRef points at a persisted product by URI.
type StoredProductRef struct {
	URI       string              `json:"uri"`
	Overrides *ReferenceOverrides `json:"overrides,omitempty"`
}

func (StoredProductRef) isProductReference() {}

// ElementID reads model_mapping_element_id from the override metadata.
func (r StoredProductRef) ElementID() (string, error) {
	if r.Overrides == nil {
		return "", fmt.Errorf("product reference is missing overrides")
	}
	id, _ := r.Overrides.MetaData["model_mapping_element_id"].(string)
	if id == "" {
		return "", fmt.Errorf("product reference is missing model_mapping_element_id in meta_data")
	}
	return id, nil
}

// MarshalJSON emits the stored reference with the "reference" discriminator.
func (r StoredProductRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string              `json:"type"`
		URI       string              `json:"uri"`
		Overrides *ReferenceOverrides `json:"overrides,omitempty"`
	}{Type: "reference", URI: r.URI, Overrides: r.Overrides})
}

// DecodeProductReference decodes one raw product reference, normalizing
// the string-or-object meta_data ambiguity so downstream code never
// re-checks it. Unknown discriminator values are an error naming the
// offending type.
func DecodeProductReference(raw json.RawMessage) (ProductReference, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode product reference: %w", err)
	}
	switch head.Type {
	case "actual":
		var epd EPD
		if err := json.Unmarshal(raw, &epd); err != nil {
			return nil, fmt.Errorf("decode inline epd: %w", err)
		}
		return ActualProduct{EPD: epd}, nil
	case "reference":
		var ref StoredProductRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, fmt.Errorf("decode stored reference: %w", err)
		}
		return ref, nil
	default:
		return nil, fmt.Errorf("unsupported product reference type %q: expected \"actual\" or \"reference\"", head.Type)
	}
}

// ProductReferenceMap maps a buildup's mapping ids to product references.
type ProductReferenceMap map[string]ProductReference

// UnmarshalJSON decodes each entry through DecodeProductReference.
func (m *ProductReferenceMap) UnmarshalJSON(data []byte) error {
	var raws map[string]json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*m = nil
		return nil
	}
	out := make(ProductReferenceMap, len(raws))
	for key, raw := range raws {
		ref, err := DecodeProductReference(raw)
		if err != nil {
			return fmt.Errorf("product %q: %w", key, err)
		}
		out[key] = ref
	}
	*m = out
	return nil
}

// EPDMetaData carries auxiliary EPD fields used by the mapper. Some
// sources serialize the whole metadata block as a JSON string; decoding
// accepts both forms and always yields a structured value.
type EPDMetaData struct {
	ModelMappingElementID string         `json:"model_mapping_element_id,omitempty"`
	Overrides             map[string]any `json:"overrides,omitempty"`
}

// UnmarshalJSON accepts either a metadata object or a JSON-encoded string
// containing one.
func (m *EPDMetaData) UnmarshalJSON(data []byte) error {
	var nested string
	if err := json.Unmarshal(data, &nested); err == nil {
		if nested == "" {
			*m = EPDMetaData{}
			return nil
		}
		data = []byte(nested)
	}
	type alias EPDMetaData
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = EPDMetaData(aux)
	return nil
}

// UnmarshalJSON accepts meta_data as either an object or a JSON string.
func (o *ReferenceOverrides) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name         string          `json:"name"`
		DeclaredUnit string          `json:"declared_unit"`
		MetaData     json.RawMessage `json:"meta_data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Name = aux.Name
	o.DeclaredUnit = aux.DeclaredUnit
	o.MetaData = nil
	if len(aux.MetaData) == 0 {
		return nil
	}
	raw := aux.MetaData
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested == "" {
			return nil
		}
		raw = []byte(nested)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("parse meta_data: %w", err)
	}
	o.MetaData = meta
	return nil
}

// UnmarshalJSON tolerates malformed quantities: a missing or non-numeric
// quantity decodes to nil rather than failing the whole buildup, so the
// mapper can report the violation with the offending mapping id.
func (r *ResultEntry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Quantity = nil
	r.NonNumeric = false
	if len(aux.Quantity) == 0 || string(aux.Quantity) == "null" {
		return nil
	}
	var q float64
	if err := json.Unmarshal(aux.Quantity, &q); err != nil {
		r.NonNumeric = true
		return nil
	}
	r.Quantity = &q
	return nil
}
