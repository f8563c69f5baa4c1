package profile

import (
	"time"
)

// Source says where a fragment's information came from.
type Source string

const (
	SourceWebsite      Source = "website"
	SourceConversation Source = "conversation"
)

// Value is a tagged union over the three field shapes. Exactly one of the
// members is populated for a non-empty value.
type Value struct {
	Scalar string            `json:"scalar,omitempty"`
	List   []string          `json:"list,omitempty"`
	Map    map[string]string `json:"map,omitempty"`
}

func (v Value) IsEmpty() bool {
	return v.Scalar == "" && len(v.List) == 0 && len(v.Map) == 0
}

func (v Value) clone() Value {
	out := Value{Scalar: v.Scalar}
	if v.List != nil {
		out.List = append([]string(nil), v.List...)
	}
	if v.Map != nil {
		out.Map = make(map[string]string, len(v.Map))
		for k, val := range v.Map {
			out.Map[k] = val
		}
	}
	return out
}

// Fragment is one extractor's partial, confidence-scored result for a single
// field. Fragments are ephemeral: produced per extraction call and consumed
// immediately by Merge.
type Fragment struct {
	Field             string  `json:"field"`
	Value             Value   `json:"value"`
	Confidence        float64 `json:"confidence"`
	NeedsConfirmation bool    `json:"needs_confirmation"`
	Source            Source  `json:"source"`
}

func (f Fragment) IsEmpty() bool {
	return f.Value.IsEmpty()
}

// Profile is the canonical accumulated view of a business. It is mutated only
// through Merge, which returns a new value; field values are superseded, never
// deleted.
type Profile struct {
	Values      map[string]Value   `json:"values"`
	Confidence  map[string]float64 `json:"confidence"`
	LastUpdated time.Time          `json:"last_updated"`
}

func New() Profile {
	return Profile{
		Values:     make(map[string]Value),
		Confidence: make(map[string]float64),
	}
}

// Clone returns a deep value copy, so callers cannot reach back into the
// accumulator's state.
func (p Profile) Clone() Profile {
	out := Profile{
		Values:      make(map[string]Value, len(p.Values)),
		Confidence:  make(map[string]float64, len(p.Confidence)),
		LastUpdated: p.LastUpdated,
	}
	for name, v := range p.Values {
		out.Values[name] = v.clone()
	}
	for name, c := range p.Confidence {
		out.Confidence[name] = c
	}
	return out
}

// Has reports whether a field holds a non-empty value.
func (p Profile) Has(field string) bool {
	v, ok := p.Values[field]
	return ok && !v.IsEmpty()
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Merge folds fragments into the profile and returns the result. It is a pure
// function of its inputs: the receiver is not modified. Empty fragments leave
// their field untouched. LastUpdated is set to now on every call, even when
// nothing changed. Out-of-range confidences are clamped at this boundary.
func Merge(p Profile, fragments []Fragment, now time.Time) Profile {
	out := p.Clone()
	if out.Values == nil {
		out.Values = make(map[string]Value)
	}
	if out.Confidence == nil {
		out.Confidence = make(map[string]float64)
	}

	for _, frag := range fragments {
		if frag.IsEmpty() {
			continue
		}
		spec, ok := FieldByName(frag.Field)
		if !ok {
			continue
		}
		confidence := frag.Confidence
		if confidence < 0 || confidence > 1 {
			confidenceClampedTotal.WithLabelValues(frag.Field).Inc()
			confidence = clampConfidence(confidence)
		}

		// A fragment whose value does not match the field's registered
		// shape is treated as empty: stored values are never blanked by
		// a malformed extraction.
		switch spec.Shape {
		case ShapeScalar:
			if frag.Value.Scalar == "" {
				continue
			}
			old, exists := out.Values[frag.Field]
			// Higher confidence wins; the newer value wins ties.
			if exists && !old.IsEmpty() && out.Confidence[frag.Field] > confidence {
				continue
			}
			out.Values[frag.Field] = Value{Scalar: frag.Value.Scalar}
			out.Confidence[frag.Field] = confidence

		case ShapeList:
			if len(frag.Value.List) == 0 {
				continue
			}
			existing := out.Values[frag.Field].List
			seen := make(map[string]bool, len(existing))
			for _, item := range existing {
				seen[item] = true
			}
			merged := append([]string(nil), existing...)
			for _, item := range frag.Value.List {
				if item == "" || seen[item] {
					continue
				}
				seen[item] = true
				merged = append(merged, item)
			}
			out.Values[frag.Field] = Value{List: merged}
			out.Confidence[frag.Field] = confidence

		case ShapeMap:
			if len(frag.Value.Map) == 0 {
				continue
			}
			existing := out.Values[frag.Field].Map
			merged := make(map[string]string, len(existing)+len(frag.Value.Map))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range frag.Value.Map {
				if v != "" {
					merged[k] = v
				}
			}
			out.Values[frag.Field] = Value{Map: merged}
			out.Confidence[frag.Field] = confidence
		}
	}

	out.LastUpdated = now
	return out
}
