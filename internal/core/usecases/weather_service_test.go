package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/usecases"
)

func TestWeatherService_ByCoordinates(t *testing.T) {
	var got domain.WeatherQuery
	src := &mockWeather{
		byCoordsFn: func(ctx context.Context, q domain.WeatherQuery) (json.RawMessage, error) {
			got = q
			return json.RawMessage(`{"temperature":29.5}`), nil
		},
	}
	svc := usecases.NewWeatherService(src)

	doc, err := svc.ByCoordinates(context.Background(), 4.05, 9.7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(doc) != `{"temperature":29.5}` {
		t.Errorf("doc = %s", doc)
	}
	if got.BufferRadius != 1000 {
		t.Errorf("buffer radius = %v, want default 1000", got.BufferRadius)
	}
	if got.Location.Lat != 4.05 || got.Location.Lon != 9.7 {
		t.Errorf("location = %+v", got.Location)
	}
}

func TestWeatherService_ByCoordinates_Invalid(t *testing.T) {
	svc := usecases.NewWeatherService(&mockWeather{})

	tests := []struct {
		name          string
		lat, lon, rad float64
	}{
		{"lat out of range", 95, 9.7, 100},
		{"lon out of range", 4, 200, 100},
		{"negative radius", 4, 9.7, -5},
		{"NaN radius", 4, 9.7, math.NaN()},
		{"infinite radius", 4, 9.7, math.Inf(1)},
		{"NaN lat", math.NaN(), 9.7, 100},
		{"NaN lon", 4, math.NaN(), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ByCoordinates(context.Background(), tt.lat, tt.lon, tt.rad); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestWeatherService_ByZone(t *testing.T) {
	src := &mockWeather{
		byZoneFn: func(ctx context.Context, zoneID string) (json.RawMessage, error) {
			if zoneID == "missing" {
				return nil, domain.ErrNotFound
			}
			return json.RawMessage(`{"zone":"` + zoneID + `"}`), nil
		},
	}
	svc := usecases.NewWeatherService(src)

	doc, err := svc.ByZone(context.Background(), "akwa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(doc) != `{"zone":"akwa"}` {
		t.Errorf("doc = %s", doc)
	}
	if _, err := svc.ByZone(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.ByZone(context.Background(), ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}
