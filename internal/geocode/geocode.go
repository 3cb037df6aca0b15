// Package geocode resolves place names to coordinates for the
// geographic view stages. The default implementation talks to a
// Nominatim-compatible HTTP endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"voxelgpt/internal/config"
	"voxelgpt/internal/logging"
)

// Point is a [longitude, latitude] pair.
type Point [2]float64

// Boundary is a GeoJSON-style polygon: rings of [longitude, latitude]
// positions.
type Boundary [][][2]float64

// Geocoder resolves place names.
type Geocoder interface {
	// Point resolves a place name to a single coordinate.
	Point(ctx context.Context, place string) (Point, error)

	// Boundary resolves a place name to its boundary polygon.
	Boundary(ctx context.Context, place string) (Boundary, error)
}

// Nominatim is a Geocoder backed by a Nominatim-compatible endpoint.
type Nominatim struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a geocoder from configuration.
func NewNominatim(cfg config.GeocoderConfig, timeout time.Duration) *Nominatim {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://nominatim.openstreetmap.org"
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "voxelgpt"
	}
	return &Nominatim{
		endpoint:  endpoint,
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
	}
}

type nominatimResult struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	GeoJSON *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geojson"`
}

func (n *Nominatim) search(ctx context.Context, place string, polygon bool) ([]nominatimResult, error) {
	q := url.Values{}
	q.Set("q", place)
	q.Set("format", "json")
	q.Set("limit", "1")
	if polygon {
		q.Set("polygon_geojson", "1")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", n.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no geocoding result for %q", place)
	}
	return results, nil
}

// Point resolves a place name to a coordinate.
func (n *Nominatim) Point(ctx context.Context, place string) (Point, error) {
	timer := logging.StartTimer(logging.CategoryGeocode, "Point")
	defer timer.Stop()

	results, err := n.search(ctx, place, false)
	if err != nil {
		return Point{}, err
	}
	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return Point{}, fmt.Errorf("geocoder returned malformed coordinates for %q", place)
	}
	logging.Get(logging.CategoryGeocode).Info("resolved %q to [%f, %f]", place, lon, lat)
	return Point{lon, lat}, nil
}

// Boundary resolves a place name to its boundary polygon, falling
// back to a small box around the point when no polygon is available.
func (n *Nominatim) Boundary(ctx context.Context, place string) (Boundary, error) {
	timer := logging.StartTimer(logging.CategoryGeocode, "Boundary")
	defer timer.Stop()

	results, err := n.search(ctx, place, true)
	if err != nil {
		return nil, err
	}

	r := results[0]
	if r.GeoJSON != nil {
		switch r.GeoJSON.Type {
		case "Polygon":
			var poly [][][2]float64
			if err := json.Unmarshal(r.GeoJSON.Coordinates, &poly); err == nil {
				return Boundary(poly), nil
			}
		case "MultiPolygon":
			var multi [][][][2]float64
			if err := json.Unmarshal(r.GeoJSON.Coordinates, &multi); err == nil && len(multi) > 0 {
				return Boundary(multi[0]), nil
			}
		}
	}

	pt, err := n.Point(ctx, place)
	if err != nil {
		return nil, err
	}
	const d = 0.01
	return Boundary{{
		{pt[0] - d, pt[1] - d},
		{pt[0] + d, pt[1] - d},
		{pt[0] + d, pt[1] + d},
		{pt[0] - d, pt[1] + d},
		{pt[0] - d, pt[1] - d},
	}}, nil
}
