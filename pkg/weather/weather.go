// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gardener/sprinkler/pkg/apis/core"
)

// Geocoder resolves a city/country pair to geographic coordinates. The garden
// sync snapshot sent to controllers carries the resolved coordinates so the
// hardware can factor local weather into irrigation decisions.
type Geocoder interface {
	Resolve(ctx context.Context, city, country string) (core.Coordinates, error)
}

// httpGeocoder resolves coordinates against an OpenWeather-compatible
// geocoding endpoint.
type httpGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGeocoder creates a Geocoder using the given API key. baseURL may be
// empty, in which case the public OpenWeather geocoding endpoint is used.
func NewHTTPGeocoder(apiKey, baseURL string) Geocoder {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/geo/1.0/direct"
	}
	return &httpGeocoder{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *httpGeocoder) Resolve(ctx context.Context, city, country string) (core.Coordinates, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("%s,%s", city, country))
	query.Set("limit", "1")
	query.Set("appid", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return core.Coordinates{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return core.Coordinates{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return core.Coordinates{}, fmt.Errorf("geocoding request returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return core.Coordinates{}, fmt.Errorf("cannot decode geocoding response: %w", err)
	}
	if len(results) == 0 {
		return core.Coordinates{}, fmt.Errorf("no coordinates found for %s, %s", city, country)
	}
	return core.Coordinates{Latitude: results[0].Lat, Longitude: results[0].Lon}, nil
}

// StaticGeocoder always returns the same coordinates. Used in simulation mode
// and in tests.
type StaticGeocoder struct {
	Coordinates core.Coordinates
	// Err, when set, is returned instead.
	Err error
}

// Resolve implements Geocoder.
func (g *StaticGeocoder) Resolve(context.Context, string, string) (core.Coordinates, error) {
	if g.Err != nil {
		return core.Coordinates{}, g.Err
	}
	return g.Coordinates, nil
}
