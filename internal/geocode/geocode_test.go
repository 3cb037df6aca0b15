package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voxelgpt/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeocoder(t *testing.T, handler http.HandlerFunc) *Nominatim {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNominatim(config.GeocoderConfig{Endpoint: srv.URL, UserAgent: "test"}, 5*time.Second)
}

func TestPoint(t *testing.T) {
	t.Run("parses lon lat", func(t *testing.T) {
		g := testGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Paris", r.URL.Query().Get("q"))
			fmt.Fprint(w, `[{"lat": "48.8566", "lon": "2.3522"}]`)
		})
		pt, err := g.Point(context.Background(), "Paris")
		require.NoError(t, err)
		assert.InDelta(t, 2.3522, pt[0], 1e-9)
		assert.InDelta(t, 48.8566, pt[1], 1e-9)
	})

	t.Run("empty result set fails", func(t *testing.T) {
		g := testGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[]`)
		})
		_, err := g.Point(context.Background(), "Nowhereville")
		assert.Error(t, err)
	})

	t.Run("non-200 fails", func(t *testing.T) {
		g := testGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := g.Point(context.Background(), "Paris")
		assert.Error(t, err)
	})
}

func TestBoundary(t *testing.T) {
	t.Run("uses the polygon when present", func(t *testing.T) {
		g := testGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("polygon_geojson"))
			fmt.Fprint(w, `[{"lat": "1", "lon": "2", "geojson": {
				"type": "Polygon",
				"coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]
			}}]`)
		})
		b, err := g.Boundary(context.Background(), "Springfield")
		require.NoError(t, err)
		require.Len(t, b, 1)
		assert.Len(t, b[0], 5)
	})

	t.Run("takes the first ring of a multipolygon", func(t *testing.T) {
		g := testGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"lat": "1", "lon": "2", "geojson": {
				"type": "MultiPolygon",
				"coordinates": [[[[0,0],[1,0],[1,1],[0,0]]], [[[5,5],[6,5],[6,6],[5,5]]]]
			}}]`)
		})
		b, err := g.Boundary(context.Background(), "Archipelago")
		require.NoError(t, err)
		require.Len(t, b, 1)
		assert.Equal(t, [2]float64{0, 0}, b[0][0])
	})

	t.Run("falls back to a box around the point", func(t *testing.T) {
		g := testGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"lat": "10", "lon": "20"}]`)
		})
		b, err := g.Boundary(context.Background(), "Some Corner")
		require.NoError(t, err)
		require.Len(t, b, 1)
		require.Len(t, b[0], 5)
		assert.InDelta(t, 19.99, b[0][0][0], 1e-9)
		assert.InDelta(t, 9.99, b[0][0][1], 1e-9)
		// Closed ring.
		assert.Equal(t, b[0][0], b[0][4])
	})
}
