package dedup

import (
	"testing"

	"github.com/plateful/plate-backend/internal/domain"
)

func TestNormalizeItemID_Recipe_StripsNonDigits(t *testing.T) {
	cases := map[string]string{
		"52772":          "52772",
		"id=52772":       "52772",
		"recipe-52772":   "52772",
		" 5 2 7 7 2 ":    "52772",
		"no-digits-here": "",
	}
	for in, want := range cases {
		if got := NormalizeItemID(domain.ItemTypeRecipe, in); got != want {
			t.Fatalf("recipe %q: got %q want %q", in, got, want)
		}
	}
}

func TestNormalizeItemID_Restaurant_LowercaseNoWhitespace(t *testing.T) {
	cases := map[string]string{
		"ChIJN1t_tDeuEmsR":   "chijn1t_tdeuemsr",
		"  Place ID 42  ":    "placeid42",
		"ALREADY-NORMALIZED": "already-normalized",
		"tab\tand\nnewline":  "tabandnewline",
	}
	for in, want := range cases {
		if got := NormalizeItemID(domain.ItemTypeRestaurant, in); got != want {
			t.Fatalf("restaurant %q: got %q want %q", in, got, want)
		}
	}
}

func TestNormalizeItemID_Video_ExtractsFromURLShapes(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=abc123":     "abc123",
		"https://youtu.be/abc123":                    "abc123",
		"https://www.youtube.com/embed/abc123":       "abc123",
		"https://youtu.be/abc-123_x?t=42":            "abc-123_x",
		"abc123":                                     "abc123",
		"https://example.com/clips/no-known-pattern": "https://example.com/clips/no-known-pattern",
	}
	for in, want := range cases {
		if got := NormalizeItemID(domain.ItemTypeVideo, in); got != want {
			t.Fatalf("video %q: got %q want %q", in, got, want)
		}
	}
}

func TestNormalizeItemID_Photo_DropsQueryAndFragment(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/p/1.jpg?w=800":   "https://cdn.example.com/p/1.jpg",
		"https://cdn.example.com/p/1.jpg#zoom":    "https://cdn.example.com/p/1.jpg",
		"https://cdn.example.com/p/1.jpg?a=1#b=2": "https://cdn.example.com/p/1.jpg",
		"https://cdn.example.com/p/1.jpg":         "https://cdn.example.com/p/1.jpg",
	}
	for in, want := range cases {
		if got := NormalizeItemID(domain.ItemTypePhoto, in); got != want {
			t.Fatalf("photo %q: got %q want %q", in, got, want)
		}
	}
}

func TestNormalizeItemID_Other_TrimsOnly(t *testing.T) {
	if got := NormalizeItemID(domain.ItemTypeOther, "  Mixed Case?x=1  "); got != "Mixed Case?x=1" {
		t.Fatalf("other: got %q", got)
	}
}

// Normalizing twice must equal normalizing once, for every type.
func TestNormalizeItemID_Idempotent(t *testing.T) {
	inputs := map[domain.ItemType]string{
		domain.ItemTypeRecipe:     "id=52772",
		domain.ItemTypeRestaurant: "  Place ID 42  ",
		domain.ItemTypeVideo:      "https://youtu.be/abc123",
		domain.ItemTypePhoto:      "https://cdn.example.com/p/1.jpg?w=800",
		domain.ItemTypeOther:      "  plain  ",
	}
	for typ, in := range inputs {
		once := NormalizeItemID(typ, in)
		twice := NormalizeItemID(typ, once)
		if once != twice {
			t.Fatalf("%s: normalize not idempotent: %q -> %q -> %q", typ, in, once, twice)
		}
	}
}
