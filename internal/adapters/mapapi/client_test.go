package mapapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/samirrijal/geolayers/internal/core/domain"
)

const sampleEnvelope = `{
  "message": "ok",
  "limit": 2,
  "page": 1,
  "data": {
    "type": "FeatureCollection",
    "features": [
      {"type": "Feature", "properties": {"id": 1},
       "geometry": {"type": "Polygon", "coordinates": [[[1068731.92,456110.24],[1068741.92,456110.24],[1068741.92,456120.24],[1068731.92,456110.24]]]}},
      {"type": "Feature", "properties": {"id": 2},
       "geometry": {"type": "Point", "coordinates": [1068731.92,456110.24]}}
    ]
  }
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestClient_Features_Routes(t *testing.T) {
	tests := []struct {
		name      string
		q         domain.LayerQuery
		wantPath  string
		wantQuery map[string]string
	}{
		{
			"all buildings",
			domain.LayerQuery{Layer: domain.LayerBuildings, BBox: "9.6,4,9.9,4.2", Limit: 50, Page: 2},
			"/buildings",
			map[string]string{"bbox": "9.6,4,9.9,4.2", "limit": "50", "page": "2"},
		},
		{
			"building category",
			domain.LayerQuery{Layer: domain.LayerBuildings, Category: "school", BBox: "9.6,4,9.9,4.2"},
			"/category/buildings",
			map[string]string{"building_category": "school", "bbox": "9.6,4,9.9,4.2", "limit": ""},
		},
		{
			"all roads",
			domain.LayerQuery{Layer: domain.LayerRoads, BBox: "0,0,1,1"},
			"/roads",
			map[string]string{"bbox": "0,0,1,1"},
		},
		{
			"road category",
			domain.LayerQuery{Layer: domain.LayerRoads, Category: "primary"},
			"/category/roads",
			map[string]string{"category": "primary", "bbox": ""},
		},
		{
			"junctions",
			domain.LayerQuery{Layer: domain.LayerJunctions, Category: "RB", Limit: 10},
			"/roads/junctions",
			map[string]string{"junction_type_code": "RB", "limit": "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("path = %s, want %s", r.URL.Path, tt.wantPath)
				}
				for k, v := range tt.wantQuery {
					if got := r.URL.Query().Get(k); got != v {
						t.Errorf("query %s = %q, want %q", k, got, v)
					}
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(sampleEnvelope))
			})

			env, err := c.Features(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Data == nil || len(env.Data.Features) != 2 {
				t.Fatalf("expected 2 features, got %+v", env.Data)
			}
			if _, ok := env.Data.Features[0].Geometry.(orb.Polygon); !ok {
				t.Errorf("first feature geometry = %T, want polygon", env.Data.Features[0].Geometry)
			}
		})
	}
}

func TestClient_Categories(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/roads/categories" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":"ok","data":["primary","tertiary"]}`))
	})

	cats, err := c.Categories(context.Background(), domain.LayerRoads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cats) != 2 || cats[1] != "tertiary" {
		t.Errorf("categories = %v", cats)
	}
	if _, err := c.Categories(context.Background(), domain.LayerJunctions); !errors.Is(err, domain.ErrUnknownLayer) {
		t.Errorf("err = %v, want ErrUnknownLayer", err)
	}
}

func TestClient_Weather(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/weather":
			q := r.URL.Query()
			if q.Get("lat") != "4.05" || q.Get("lon") != "9.7" || q.Get("buffer_radius") != "500" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"temp":30}`))
		case "/weather/bonanjo":
			_, _ = w.Write([]byte(`{"zone":"bonanjo"}`))
		default:
			http.NotFound(w, r)
		}
	})

	doc, err := c.WeatherByCoordinates(context.Background(), domain.WeatherQuery{
		Location: domain.GeoPoint{Lat: 4.05, Lon: 9.7}, BufferRadius: 500,
	})
	if err != nil || string(doc) != `{"temp":30}` {
		t.Fatalf("doc = %s, err = %v", doc, err)
	}

	doc, err = c.WeatherByZone(context.Background(), "bonanjo")
	if err != nil || string(doc) != `{"zone":"bonanjo"}` {
		t.Fatalf("doc = %s, err = %v", doc, err)
	}

	if _, err := c.WeatherByZone(context.Background(), "nowhere"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"detail":"down"}`},
		{"invalid json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Features(context.Background(), domain.LayerQuery{Layer: domain.LayerBuildings})
			if !errors.Is(err, domain.ErrUpstream) {
				t.Errorf("err = %v, want ErrUpstream", err)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := c.Junctions(context.Background(), domain.JunctionQuery{TypeCode: "X"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}
