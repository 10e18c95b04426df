package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Lifespan markers as they appear in the durable store.
const (
	NotApplicableMarker = "N/A"
	UnknownMarker       = "Unknown"
)

// LifespanKind tells which form a Lifespan takes.
type LifespanKind uint8

const (
	// LifespanDays carries a day count from the lifespan table
	LifespanDays LifespanKind = iota
	// LifespanNotApplicable follows a stale observation
	LifespanNotApplicable
	// LifespanUnknown follows a fresh observation of a product with no table entry
	LifespanUnknown
)

// Lifespan is the expected shelf life derived from the latest observation.
type Lifespan struct {
	Kind LifespanKind
	Days int
}

// Days returns a lifespan of n days.
func Days(n int) Lifespan { return Lifespan{Kind: LifespanDays, Days: n} }

// NotApplicable returns the lifespan recorded after a stale observation.
func NotApplicable() Lifespan { return Lifespan{Kind: LifespanNotApplicable} }

// Unknown returns the lifespan recorded for products without a table entry.
func Unknown() Lifespan { return Lifespan{Kind: LifespanUnknown} }

// String renders the lifespan in store form: a day count, "N/A" or "Unknown".
func (l Lifespan) String() string {
	switch l.Kind {
	case LifespanNotApplicable:
		return NotApplicableMarker
	case LifespanUnknown:
		return UnknownMarker
	default:
		return strconv.Itoa(l.Days)
	}
}

// ParseLifespan parses the store form produced by String.
func ParseLifespan(s string) (Lifespan, error) {
	switch s {
	case NotApplicableMarker:
		return NotApplicable(), nil
	case UnknownMarker:
		return Unknown(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Lifespan{}, fmt.Errorf("invalid expected life span %q", s)
	}
	return Days(n), nil
}

// MarshalJSON writes day counts as numbers and markers as strings.
func (l Lifespan) MarshalJSON() ([]byte, error) {
	if l.Kind == LifespanDays {
		return json.Marshal(l.Days)
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either a number or one of the markers.
func (l *Lifespan) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("negative expected life span %d", n)
		}
		*l = Days(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLifespan(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Entry is one ledger row, keyed by product.
type Entry struct {
	Sequence   int       `json:"s_no"`
	Product    string    `json:"product"`
	FreshCount int       `json:"fresh_count"`
	LastSeen   time.Time `json:"last_detected_time"`
	Lifespan   Lifespan  `json:"expected_life_span"`
}

// LifespanTable maps product to expected shelf life in days.
type LifespanTable map[string]int

// DefaultLifespans is the stock product to shelf-life table.
var DefaultLifespans = LifespanTable{
	"apple":  7,
	"onion":  10,
	"carrot": 5,
	"tomato": 3,
}

// Resolve returns the lifespan for an observation of product.
func (t LifespanTable) Resolve(product string, fresh bool) Lifespan {
	if !fresh {
		return NotApplicable()
	}
	days, ok := t[product]
	if !ok {
		return Unknown()
	}
	return Days(days)
}
