package consensus

import "testing"

func TestResolveValidMajority(t *testing.T) {
	candidates := []Candidate{
		{Text: "KA05MN0178", ValidFormat: true, IsEV: false},
		{Text: "KA05MN0I78", ValidFormat: false, IsEV: true},
		{Text: "KA05MN0178", ValidFormat: true, IsEV: false},
		{Text: "KA05MN0178", ValidFormat: true, IsEV: true},
		{Text: "KA0SMN0178", ValidFormat: false, IsEV: false},
	}

	result, ok := Resolve(candidates)
	if !ok {
		t.Fatal("Resolve returned no detection for a populated candidate list")
	}
	if result.PlateText != "KA05MN0178" {
		t.Errorf("PlateText = %q, want KA05MN0178", result.PlateText)
	}
	if !result.UsedValidMajority {
		t.Error("UsedValidMajority = false, want true")
	}
	// EV votes counted over the valid candidates only: 1 of 3.
	if result.IsEV {
		t.Error("IsEV = true, want false")
	}
}

func TestResolveFallsBackToAllCandidates(t *testing.T) {
	candidates := []Candidate{
		{Text: "AB1", ValidFormat: false, IsEV: true},
		{Text: "AB1", ValidFormat: false, IsEV: true},
		{Text: "XYZ", ValidFormat: false, IsEV: false},
	}

	result, ok := Resolve(candidates)
	if !ok {
		t.Fatal("Resolve returned no detection for a populated candidate list")
	}
	if result.PlateText != "AB1" {
		t.Errorf("PlateText = %q, want AB1", result.PlateText)
	}
	if result.UsedValidMajority {
		t.Error("UsedValidMajority = true, want false")
	}
	if !result.IsEV {
		t.Error("IsEV = false, want true for a 2-of-3 EV majority")
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	if _, ok := Resolve(nil); ok {
		t.Error("Resolve(nil) reported a detection")
	}
	if _, ok := Resolve([]Candidate{}); ok {
		t.Error("Resolve(empty) reported a detection")
	}
}

func TestResolveTieBreaksOnFirstSeen(t *testing.T) {
	candidates := []Candidate{
		{Text: "KA05MN0178", ValidFormat: true},
		{Text: "KA05MN0179", ValidFormat: true},
		{Text: "KA05MN0179", ValidFormat: true},
		{Text: "KA05MN0178", ValidFormat: true},
	}

	result, ok := Resolve(candidates)
	if !ok {
		t.Fatal("Resolve returned no detection")
	}
	if result.PlateText != "KA05MN0178" {
		t.Errorf("PlateText = %q, want first-seen KA05MN0178 on a tie", result.PlateText)
	}
}

func TestResolveEVMajorityRequiresStrictMajority(t *testing.T) {
	candidates := []Candidate{
		{Text: "KA05MN0178", ValidFormat: true, IsEV: true},
		{Text: "KA05MN0178", ValidFormat: true, IsEV: false},
	}

	result, ok := Resolve(candidates)
	if !ok {
		t.Fatal("Resolve returned no detection")
	}
	if result.IsEV {
		t.Error("IsEV = true on a 1-of-2 split, want false")
	}
}
