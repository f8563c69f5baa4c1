package profile

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var mergeTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestMergeScalarHigherConfidenceWins(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{
		Field:      "businessName",
		Value:      Value{Scalar: "Acme"},
		Confidence: 0.6,
		Source:     SourceWebsite,
	}}, mergeTime)

	p = Merge(p, []Fragment{{
		Field:      "businessName",
		Value:      Value{Scalar: "Acme Inc"},
		Confidence: 0.9,
		Source:     SourceConversation,
	}}, mergeTime.Add(time.Minute))

	if got := p.Values["businessName"].Scalar; got != "Acme Inc" {
		t.Fatalf("expected higher-confidence value to win, got %q", got)
	}
	if p.Confidence["businessName"] != 0.9 {
		t.Fatalf("confidence not updated: %v", p.Confidence["businessName"])
	}
}

func TestMergeScalarLowerConfidenceLoses(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{Field: "businessName", Value: Value{Scalar: "Acme"}, Confidence: 0.9}}, mergeTime)
	p = Merge(p, []Fragment{{Field: "businessName", Value: Value{Scalar: "Ajax"}, Confidence: 0.3}}, mergeTime)

	if got := p.Values["businessName"].Scalar; got != "Acme" {
		t.Fatalf("lower-confidence value must not replace, got %q", got)
	}
}

func TestMergeScalarNewWinsTies(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{Field: "location", Value: Value{Scalar: "Springfield"}, Confidence: 0.7}}, mergeTime)
	p = Merge(p, []Fragment{{Field: "location", Value: Value{Scalar: "Springfield, IL"}, Confidence: 0.7}}, mergeTime)

	if got := p.Values["location"].Scalar; got != "Springfield, IL" {
		t.Fatalf("equal confidence should favor the newer value, got %q", got)
	}
}

func TestMergeEmptyFragmentLeavesFieldUntouched(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{Field: "businessName", Value: Value{Scalar: "Acme"}, Confidence: 0.8}}, mergeTime)
	p = Merge(p, []Fragment{{Field: "businessName", Confidence: 0.99}}, mergeTime.Add(time.Hour))

	if got := p.Values["businessName"].Scalar; got != "Acme" {
		t.Fatalf("empty fragment must not change the field, got %q", got)
	}
	if p.Confidence["businessName"] != 0.8 {
		t.Fatalf("empty fragment must not change confidence, got %v", p.Confidence["businessName"])
	}
}

func TestMergeWrongShapeLeavesFieldUntouched(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{Field: "businessName", Value: Value{Scalar: "Acme"}, Confidence: 0.9}}, mergeTime)

	// A scalar field fed list data, a list field fed scalar data, and a map
	// field fed scalar data: none may overwrite or blank what is stored.
	p = Merge(p, []Fragment{{Field: "services", Value: Value{List: []string{"plumbing"}}, Confidence: 0.8}}, mergeTime)
	p = Merge(p, []Fragment{{Field: "socialMedia", Value: Value{Map: map[string]string{"instagram": "@acme"}}, Confidence: 0.8}}, mergeTime)

	mismatched := []Fragment{
		{Field: "businessName", Value: Value{List: []string{"garbage"}}, Confidence: 0.95},
		{Field: "services", Value: Value{Scalar: "garbage"}, Confidence: 0.95},
		{Field: "socialMedia", Value: Value{Scalar: "garbage"}, Confidence: 0.95},
	}
	p = Merge(p, mismatched, mergeTime.Add(time.Hour))

	if got := p.Values["businessName"].Scalar; got != "Acme" {
		t.Fatalf("scalar field changed by list-shaped fragment: %q", got)
	}
	if p.Confidence["businessName"] != 0.9 {
		t.Fatalf("scalar confidence changed: %v", p.Confidence["businessName"])
	}
	if got := p.Values["services"].List; len(got) != 1 || got[0] != "plumbing" {
		t.Fatalf("list field changed by scalar-shaped fragment: %v", got)
	}
	if got := p.Values["socialMedia"].Map; len(got) != 1 || got["instagram"] != "@acme" {
		t.Fatalf("map field changed by scalar-shaped fragment: %v", got)
	}
}

func TestMergeListUnionPreservesOrder(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{
		Field:      "services",
		Value:      Value{List: []string{"plumbing", "heating"}},
		Confidence: 0.8,
	}}, mergeTime)
	p = Merge(p, []Fragment{{
		Field:      "services",
		Value:      Value{List: []string{"heating", "cooling"}},
		Confidence: 0.8,
	}}, mergeTime)

	got := p.Values["services"].List
	want := []string{"plumbing", "heating", "cooling"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergeMapKeywise(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{
		Field:      "socialMedia",
		Value:      Value{Map: map[string]string{"instagram": "ig.com/old", "facebook": "fb.com/acme"}},
		Confidence: 0.8,
	}}, mergeTime)
	p = Merge(p, []Fragment{{
		Field:      "socialMedia",
		Value:      Value{Map: map[string]string{"instagram": "ig.com/new", "linkedin": "li.com/acme", "twitter": ""}},
		Confidence: 0.8,
	}}, mergeTime)

	m := p.Values["socialMedia"].Map
	if m["instagram"] != "ig.com/new" {
		t.Errorf("new non-empty key value should overwrite, got %q", m["instagram"])
	}
	if m["facebook"] != "fb.com/acme" {
		t.Errorf("absent key should remain untouched, got %q", m["facebook"])
	}
	if m["linkedin"] != "li.com/acme" {
		t.Errorf("new key should be added, got %q", m["linkedin"])
	}
	if _, ok := m["twitter"]; ok {
		t.Error("empty value should not overwrite or create a key")
	}
}

func TestMergeClampsConfidence(t *testing.T) {
	clampedBefore := testutil.ToFloat64(confidenceClampedTotal.WithLabelValues("businessName")) +
		testutil.ToFloat64(confidenceClampedTotal.WithLabelValues("location"))

	p := New()
	p = Merge(p, []Fragment{
		{Field: "businessName", Value: Value{Scalar: "Acme"}, Confidence: 1.7},
		{Field: "location", Value: Value{Scalar: "Springfield"}, Confidence: -0.3},
	}, mergeTime)

	clampedAfter := testutil.ToFloat64(confidenceClampedTotal.WithLabelValues("businessName")) +
		testutil.ToFloat64(confidenceClampedTotal.WithLabelValues("location"))
	if clampedAfter-clampedBefore != 2 {
		t.Errorf("expected 2 clamps recorded, got %v", clampedAfter-clampedBefore)
	}

	for field, c := range p.Confidence {
		if c < 0 || c > 1 {
			t.Errorf("confidence for %s out of range: %v", field, c)
		}
	}
	if p.Confidence["businessName"] != 1 {
		t.Errorf("expected clamp to 1, got %v", p.Confidence["businessName"])
	}
	if p.Confidence["location"] != 0 {
		t.Errorf("expected clamp to 0, got %v", p.Confidence["location"])
	}
}

func TestMergeSetsLastUpdatedEvenWhenNothingChanges(t *testing.T) {
	p := New()
	p = Merge(p, nil, mergeTime)
	if !p.LastUpdated.Equal(mergeTime) {
		t.Fatalf("LastUpdated not set: %v", p.LastUpdated)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{Field: "services", Value: Value{List: []string{"a"}}, Confidence: 0.5}}, mergeTime)

	_ = Merge(p, []Fragment{{Field: "services", Value: Value{List: []string{"b"}}, Confidence: 0.5}}, mergeTime)

	if len(p.Values["services"].List) != 1 {
		t.Fatal("Merge mutated its input profile")
	}
}

func TestMergeUnknownFieldIgnored(t *testing.T) {
	p := New()
	p = Merge(p, []Fragment{{Field: "favouriteColour", Value: Value{Scalar: "blue"}, Confidence: 0.9}}, mergeTime)
	if _, ok := p.Values["favouriteColour"]; ok {
		t.Fatal("unregistered field should be ignored")
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := New()
	p.Values["services"] = Value{List: []string{"a"}}
	p.Values["socialMedia"] = Value{Map: map[string]string{"x": "y"}}

	c := p.Clone()
	c.Values["services"].List[0] = "changed"
	c.Values["socialMedia"].Map["x"] = "changed"

	if p.Values["services"].List[0] != "a" || p.Values["socialMedia"].Map["x"] != "y" {
		t.Fatal("Clone shares memory with the original")
	}
}

func TestHas(t *testing.T) {
	p := New()
	if p.Has("businessName") {
		t.Error("empty profile should have no fields")
	}
	p.Values["businessName"] = Value{Scalar: "Acme"}
	if !p.Has("businessName") {
		t.Error("populated scalar should count as present")
	}
	p.Values["services"] = Value{}
	if p.Has("services") {
		t.Error("empty value should not count as present")
	}
}
