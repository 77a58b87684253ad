package core

import "encoding/json"

// ParseEPD normalizes a raw EPD payload into a structured record. Already
// parsed values pass through untouched; string and byte payloads are JSON
// decoded. Malformed input yields nil rather than an error: downstream
// code treats nil as "no impacts available" and keeps going.
func ParseEPD(raw any) *EPD {
	switch v := raw.(type) {
	case nil:
		return nil
	case *EPD:
		return v
	case EPD:
		return &v
	case string:
		return decodeEPD([]byte(v))
	case []byte:
		return decodeEPD(v)
	case json.RawMessage:
		return decodeEPD(v)
	default:
		// Anything else (decoded generic JSON, third-party shapes) is
		// round-tripped through encoding to reuse the EPD field mapping.
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return decodeEPD(data)
	}
}

func decodeEPD(data []byte) *EPD {
	if len(data) == 0 {
		return nil
	}
	var epd EPD
	if err := json.Unmarshal(data, &epd); err != nil {
		return nil
	}
	return &epd
}
