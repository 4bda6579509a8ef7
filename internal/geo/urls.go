package geo

import (
	"fmt"
	"net/url"

	"github.com/example/delivery-dispatch/internal/models"
)

const staticMapBase = "https://api.mapbox.com/styles/v1/mapbox/dark-v11/static"

// StaticMapURL renders a Mapbox static image with pin A (pickup, red) and
// pin B (dropoff, green), auto-framed.
func StaticMapURL(token string, a, b models.Coord, width, height int) (string, error) {
	if err := ValidateCoord(a); err != nil {
		return "", err
	}
	if err := ValidateCoord(b); err != nil {
		return "", err
	}
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 400
	}
	markers := fmt.Sprintf("pin-s-a+f44336(%s),pin-s-b+4caf50(%s)", lonLat(a), lonLat(b))
	return fmt.Sprintf("%s/%s/auto/%dx%d@2x?access_token=%s", staticMapBase, markers, width, height, url.QueryEscape(token)), nil
}

// NavigationURL is a Google Maps driving-directions link from a to b.
func NavigationURL(a, b models.Coord) (string, error) {
	if err := ValidateCoord(a); err != nil {
		return "", err
	}
	if err := ValidateCoord(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&origin=%s&destination=%s&travelmode=driving", latLon(a), latLon(b)), nil
}

func lonLat(c models.Coord) string { return fmt.Sprintf("%g,%g", c.Lon, c.Lat) }

func latLon(c models.Coord) string { return fmt.Sprintf("%g,%g", c.Lat, c.Lon) }
