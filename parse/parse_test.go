package parse

import (
	"strings"
	"testing"

	fuzz "github.com/trailofbits/go-fuzz-utils"
)

func TestBlankCommentHandling(t *testing.T) {
	// Comments and blank lines must parse identically to their absence.
	withComments := "# header\n\nA = 5\n"
	bare := "A = 5\n"

	n1, err := Parse(strings.NewReader(withComments))
	if err != nil {
		t.Fatal(err)
	}
	n2, err := Parse(strings.NewReader(bare))
	if err != nil {
		t.Fatal(err)
	}
	if len(n1.Species) != len(n2.Species) || n1.Species[0] != n2.Species[0] {
		t.Fatalf("comment/blank handling changed parse result: %v vs %v", n1.Species, n2.Species)
	}
}

func TestSpeciesInitAndReaction(t *testing.T) {
	input := "A = 10\nB = 0\nA -> B, 1.5\n"
	n, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if n.Net.NumSpecies() != 2 || n.Net.NumReactions() != 1 {
		t.Fatalf("got %d species, %d reactions", n.Net.NumSpecies(), n.Net.NumReactions())
	}
	a, err := n.Net.Propensity(0, []uint64{10, 0})
	if err != nil {
		t.Fatal(err)
	}
	if a != 15 {
		t.Fatalf("propensity = %v, want 15", a)
	}
}

func TestDegradationEmptyProductSide(t *testing.T) {
	input := "A = 100\nA ->, 0.1\n"
	n, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Net.Reaction(0).Products) != 0 {
		t.Fatalf("degradation reaction should have no products: %+v", n.Net.Reaction(0))
	}
}

func TestCoefficientsAndMultipleTerms(t *testing.T) {
	input := "A = 10\nB = 10\nC = 0\n2 A + B -> 3 C, 0.01\n"
	n, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	r := n.Net.Reaction(0)
	if len(r.Reactants) != 2 || len(r.Products) != 1 {
		t.Fatalf("unexpected reaction shape: %+v", r)
	}
	if r.Reactants[0].Coeff != 2 || r.Products[0].Coeff != 3 {
		t.Fatalf("unexpected coefficients: %+v", r)
	}
}

func TestUndeclaredSpeciesIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("A -> B, 1.0\n"))
	if err == nil {
		t.Fatal("expected an error for an undeclared species")
	}
}

func TestDuplicateDeclarationIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("A = 1\nA = 2\n"))
	if err == nil {
		t.Fatal("expected an error for a duplicate species declaration")
	}
}

func TestMalformedLineIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not a valid line\n"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestMultipleFilesCompose(t *testing.T) {
	n, err := Parse(strings.NewReader("A = 5\n"), strings.NewReader("A -> , 1.0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Net.NumSpecies() != 1 || n.Net.NumReactions() != 1 {
		t.Fatalf("expected composition across files, got %d species %d reactions", n.Net.NumSpecies(), n.Net.NumReactions())
	}
}

// FuzzParse feeds structured-random input text to Parse, checking only
// that it never panics — malformed input must always surface as a
// returned error, never a crash.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"A = 5\nA -> , 1.0\n",
		"A = 1\nB = 2\nA + B -> 2 A, 0.5\n# comment\n\n",
		"",
		"A = 5\nA = 6\n",
		"A -> B, 1.0\n",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}
		text, err := tp.GetString()
		if err != nil {
			t.Skip(err)
		}
		_, _ = Parse(strings.NewReader(text))
	})
}
