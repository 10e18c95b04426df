// Package detection provides domain models for produce freshness detections.
// These models are independent of the detector that produced them and of the
// store that persists the aggregates derived from them.
package detection

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Freshness is the freshness state decoded from a detector label.
type Freshness uint8

const (
	// Fresh marks produce fit for sale; it advances the ledger's fresh count
	Fresh Freshness = iota + 1
	// Stale marks produce past its prime
	Stale
)

const (
	freshLabel = "fresh"
	staleLabel = "stale"
)

// ParseFreshness maps a label suffix to a Freshness. Matching is exact.
func ParseFreshness(s string) (Freshness, error) {
	switch s {
	case freshLabel:
		return Fresh, nil
	case staleLabel:
		return Stale, nil
	default:
		return 0, fmt.Errorf("unknown freshness state %q", s)
	}
}

// String returns the label form ("fresh" or "stale").
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return freshLabel
	case Stale:
		return staleLabel
	default:
		return "unknown"
	}
}

// IsFresh reports whether f is Fresh.
func (f Freshness) IsFresh() bool {
	return f == Fresh
}

// MarshalJSON renders the freshness as its label.
func (f Freshness) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON parses the label form.
func (f *Freshness) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFreshness(strings.ToLower(s))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// BBox is a bounding box in pixel coordinates (x1, y1, x2, y2).
// It is carried through for display and never read by the ledger.
type BBox [4]int

// RawDetection is a single detector output after inference, before decoding.
type RawDetection struct {
	ClassIndex int     `json:"class_index"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Classified is a decoded detection that passed the confidence gate.
type Classified struct {
	Product    string    `json:"product"`
	Freshness  Freshness `json:"freshness"`
	Confidence float64   `json:"confidence"`
	BBox       BBox      `json:"bbox"`
}

// Label returns the composite "<product>_<freshness>" label.
func (c Classified) Label() string {
	return c.Product + "_" + c.Freshness.String()
}
