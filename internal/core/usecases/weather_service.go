package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/ports"
	"github.com/samirrijal/geolayers/internal/pkg/telemetry"
)

const defaultBufferRadius = 1000.0

// WeatherService proxies weather lookups to the upstream API.
type WeatherService struct {
	source ports.WeatherSource
}

// NewWeatherService creates a new WeatherService.
func NewWeatherService(source ports.WeatherSource) *WeatherService {
	return &WeatherService{source: source}
}

// ByCoordinates returns the weather around a point. A zero radius selects
// the default buffer of 1 km.
func (s *WeatherService) ByCoordinates(ctx context.Context, lat, lon, bufferRadius float64) (json.RawMessage, error) {
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidArgument)
	}
	if bufferRadius == 0 {
		bufferRadius = defaultBufferRadius
	}
	if math.IsNaN(bufferRadius) || math.IsInf(bufferRadius, 0) || bufferRadius < 0 {
		return nil, fmt.Errorf("%w: buffer_radius must be positive", domain.ErrInvalidArgument)
	}

	ctx, span := otel.Tracer(telemetry.TracerInstrumentID).Start(ctx, telemetry.SpanWeather)
	defer span.End()

	doc, err := s.source.WeatherByCoordinates(ctx, domain.WeatherQuery{Location: p, BufferRadius: bufferRadius})
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	return doc, nil
}

// ByZone returns the weather of a named zone.
func (s *WeatherService) ByZone(ctx context.Context, zoneID string) (json.RawMessage, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("%w: zone id must not be empty", domain.ErrInvalidArgument)
	}
	doc, err := s.source.WeatherByZone(ctx, zoneID)
	if err != nil {
		return nil, fmt.Errorf("fetch weather for zone %s: %w", zoneID, err)
	}
	return doc, nil
}
