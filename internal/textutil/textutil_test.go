package textutil

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Air-strike hits Damascus, 12 killed!")
	want := []string{"air", "strike", "hits", "damascus", "12", "killed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}

	if got := Tokenize("   "); len(got) != 0 {
		t.Errorf("Tokenize(blank) = %v, want empty", got)
	}
}

func TestJaccard(t *testing.T) {
	a := SliceSet([]string{"one", "two", "three"})
	b := SliceSet([]string{"two", "three", "four"})

	if got := Jaccard(a, b); got != 0.5 {
		t.Errorf("Jaccard = %v, want 0.5", got)
	}
	if got := Jaccard(a, a); got != 1 {
		t.Errorf("identical sets = %v, want 1", got)
	}
	// Empty sets score 0, not NaN.
	if got := Jaccard(map[string]bool{}, map[string]bool{}); got != 0 {
		t.Errorf("empty sets = %v, want 0", got)
	}
	if got := Jaccard(a, map[string]bool{}); got != 0 {
		t.Errorf("one empty set = %v, want 0", got)
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"airstrike hits damascus", "airstrike", true},
		{"airstrike hits damascus", "air", false}, // substring, not a word
		{"warplanes overhead", "warplane", false},
		{"air strike hits", "air strike", true}, // multi-word phrase
		{"(idf) confirms", "idf", true},         // punctuation boundaries
		{"strike", "strike", true},
		{"", "strike", false},
	}
	for _, tt := range tests {
		if got := ContainsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("ContainsWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}
