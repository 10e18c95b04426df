// Package labels decodes detector class indices into product and freshness.
//
// The detector emits an index into a fixed, ordered label table whose entries
// read "<product>_<freshness>", e.g. "apple_fresh". Decoding is a pure function
// of the table, the threshold and its input.
package labels

import (
	"fmt"
	"strings"

	"github.com/tphakala/freshness-go/internal/detection"
	"github.com/tphakala/freshness-go/internal/errors"
)

// Separator joins product and freshness in a composite label.
const Separator = "_"

// DefaultThreshold is the confidence below which detections are discarded.
const DefaultThreshold = 0.5

// DefaultLabels is the label table of the stock freshness model.
var DefaultLabels = []string{
	"apple_fresh", "apple_stale",
	"onion_fresh", "onion_stale",
	"carrot_fresh", "carrot_stale",
	"tomato_fresh", "tomato_stale",
}

// ErrInvalidLabelIndex is returned when a class index is out of range or
// points at a label that does not decode into product and freshness.
var ErrInvalidLabelIndex = errors.NewStd("invalid label index")

// Table is an ordered label table plus the confidence gate.
type Table struct {
	labels    []string
	threshold float64
}

// NewTable creates a decoder over a copy of labels.
func NewTable(labels []string, threshold float64) *Table {
	return &Table{
		labels:    append([]string(nil), labels...),
		threshold: threshold,
	}
}

// Len returns the number of labels, K.
func (t *Table) Len() int {
	return len(t.labels)
}

// Threshold returns the confidence gate.
func (t *Table) Threshold() float64 {
	return t.threshold
}

// Label returns the composite label at index i.
func (t *Table) Label(i int) (string, bool) {
	if i < 0 || i >= len(t.labels) {
		return "", false
	}
	return t.labels[i], true
}

// Decode turns a raw detection into a classified one.
//
// A detection whose confidence is below the threshold is dropped: ok is false
// and err is nil. An index outside [0, K) or a malformed label yields an error
// wrapping ErrInvalidLabelIndex.
func (t *Table) Decode(raw detection.RawDetection) (c detection.Classified, ok bool, err error) {
	if raw.Confidence < t.threshold {
		return detection.Classified{}, false, nil
	}

	label, found := t.Label(raw.ClassIndex)
	if !found {
		return detection.Classified{}, false, errors.New(fmt.Errorf("%w: index %d outside [0, %d)", ErrInvalidLabelIndex, raw.ClassIndex, len(t.labels))).
			Component("labels").
			Category(errors.CategoryLabel).
			Context("class_index", raw.ClassIndex).
			Build()
	}

	product, freshness, err := Split(label)
	if err != nil {
		return detection.Classified{}, false, errors.New(fmt.Errorf("%w: index %d: %w", ErrInvalidLabelIndex, raw.ClassIndex, err)).
			Component("labels").
			Category(errors.CategoryLabel).
			Context("class_index", raw.ClassIndex).
			Context("label", label).
			Build()
	}

	return detection.Classified{
		Product:    product,
		Freshness:  freshness,
		Confidence: raw.Confidence,
		BBox:       raw.BBox,
	}, true, nil
}

// Split breaks a composite label into product and freshness.
// The label must contain exactly one separator with non-empty parts.
func Split(label string) (string, detection.Freshness, error) {
	parts := strings.Split(label, Separator)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("label %q does not split into product and freshness", label)
	}
	if parts[0] == "" {
		return "", 0, fmt.Errorf("label %q has an empty product", label)
	}

	freshness, err := detection.ParseFreshness(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("label %q: %w", label, err)
	}

	return parts[0], freshness, nil
}

// Encode joins product and freshness back into a composite label.
func Encode(product string, freshness detection.Freshness) string {
	return product + Separator + freshness.String()
}

// Products lists the distinct products of the table in label order.
func (t *Table) Products() []string {
	seen := make(map[string]struct{}, len(t.labels))
	products := make([]string, 0, len(t.labels))
	for _, label := range t.labels {
		product, _, err := Split(label)
		if err != nil {
			continue
		}
		if _, dup := seen[product]; dup {
			continue
		}
		seen[product] = struct{}{}
		products = append(products, product)
	}
	return products
}

// Validate reports every label that would fail to decode, and duplicates.
func (t *Table) Validate() error {
	if len(t.labels) == 0 {
		return errors.ValidationError("label table is empty")
	}

	var problems []string
	seen := make(map[string]int, len(t.labels))
	for i, label := range t.labels {
		if _, _, err := Split(label); err != nil {
			problems = append(problems, fmt.Sprintf("index %d: %v", i, err))
		}
		if first, dup := seen[label]; dup {
			problems = append(problems, fmt.Sprintf("index %d duplicates index %d (%q)", i, first, label))
			continue
		}
		seen[label] = i
	}

	if len(problems) > 0 {
		return errors.Newf("invalid label table: %s", strings.Join(problems, "; ")).
			Component("labels").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
