package geospatial

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Envelope is the response shape of the upstream feature API:
//
//	{"message": "...", "data": {"type": "FeatureCollection", "features": [...]}, "limit": 10, "page": 1}
type Envelope struct {
	Message string                     `json:"message"`
	Data    *geojson.FeatureCollection `json:"data"`
	Limit   *int                       `json:"limit,omitempty"`
	Page    *int                       `json:"page,omitempty"`

	// Skipped counts features DecodeEnvelope could not parse.
	Skipped int `json:"-"`
}

type rawEnvelope struct {
	Message string `json:"message"`
	Data    *struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	} `json:"data"`
	Limit *int `json:"limit"`
	Page  *int `json:"page"`
}

// DecodeEnvelope parses an upstream envelope leniently: features that fail
// to decode are dropped and counted in Skipped instead of failing the whole
// page. An error is returned only when the document itself is not JSON.
// A missing data.features leaves Data nil.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{Message: raw.Message, Limit: raw.Limit, Page: raw.Page}
	if raw.Data == nil || raw.Data.Features == nil {
		return env, nil
	}

	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(raw.Data.Features))
	for _, rf := range raw.Data.Features {
		f, err := geojson.UnmarshalFeature(rf)
		if err != nil {
			env.Skipped++
			continue
		}
		fc.Features = append(fc.Features, f)
	}
	env.Data = fc
	return env, nil
}

// ConvertEnvelopeBytes decodes and converts in one step. Anything that is not
// a usable envelope becomes an empty collection.
func ConvertEnvelopeBytes(b []byte) *geojson.FeatureCollection {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return geojson.NewFeatureCollection()
	}
	return ConvertFeatureCollection(env)
}
