package epipolar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
)

// Request is an estimation job as produced by the external matcher
type Request struct {
	ID      string           `json:"id"`
	Width   float64          `json:"width,omitempty"`  // Image width in pixels (optional)
	Height  float64          `json:"height,omitempty"` // Image height in pixels (optional)
	Matches []Correspondence `json:"matches"`
}

// UnmarshalJSON accepts both the object form {"x1":..,"y1":..,"x2":..,"y2":..}
// and the compact array form [x1, y1, x2, y2].
func (c *Correspondence) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return fmt.Errorf("parsing correspondence array: %w", err)
		}
		if len(arr) != 4 {
			return fmt.Errorf("correspondence array has %d values, want 4: %w", len(arr), ErrInvalidInput)
		}
		*c = Correspondence{X1: arr[0], Y1: arr[1], X2: arr[2], Y2: arr[3]}
		return nil
	}

	type plain Correspondence
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*c = Correspondence(p)
	return nil
}

// ParseRequestFile reads and parses a request JSON file
func ParseRequestFile(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseRequestJSON(data)
}

// ParseRequestJSON parses request JSON data
func ParseRequestJSON(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if r.Width < 0 || r.Height < 0 {
		return nil, fmt.Errorf("negative image size %.0fx%.0f: %w", r.Width, r.Height, ErrInvalidInput)
	}
	return &r, nil
}

// Store builds a validated correspondence store from the request
func (r *Request) Store() (*Store, error) {
	return NewStore(r.Matches)
}

// Bound returns the rectangle of the given view: the declared image size when
// present, otherwise the bounding box of that view's points.
func (r *Request) Bound(v View) orb.Bound {
	if r.Width > 0 && r.Height > 0 {
		return ImageBound(r.Width, r.Height)
	}
	return PointsBound(r.Matches, v)
}

// PointsBound returns the bounding box of one view's points
func PointsBound(matches []Correspondence, v View) orb.Bound {
	if len(matches) == 0 {
		return orb.Bound{}
	}
	pt := func(c Correspondence) orb.Point {
		if v == ViewB {
			return orb.Point{c.X2, c.Y2}
		}
		return orb.Point{c.X1, c.Y1}
	}
	b := pt(matches[0]).Bound()
	for _, c := range matches[1:] {
		b = b.Extend(pt(c))
	}
	return b
}
