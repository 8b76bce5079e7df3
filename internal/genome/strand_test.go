package genome_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genimp/genimp/internal/genome"
)

func TestIsReversed(t *testing.T) {
	ref := fakeReference{sequences: map[string]string{
		"1": "ACGT",
		"X": "acgt",
	}}
	encoding := map[string]string{"1": "1", "23": "X"}

	tests := map[string]struct {
		chromosome string
		position   int
		alleleA    string
		alleleB    string
		expected   bool
	}{
		"complement of reference matches first allele": {
			// Reference base at 1:2 is C, complement G.
			chromosome: "1", position: 2, alleleA: "G", alleleB: "C",
			expected: true,
		},
		"same strand as reference": {
			chromosome: "1", position: 2, alleleA: "C", alleleB: "G",
			expected: false,
		},
		"lowercase alleles are accepted": {
			chromosome: "1", position: 2, alleleA: "g", alleleB: "c",
			expected: true,
		},
		"lowercase reference base is accepted": {
			// Reference base at X:1 is a, complement T.
			chromosome: "23", position: 1, alleleA: "T", alleleB: "A",
			expected: true,
		},
		"invalid first allele": {
			chromosome: "1", position: 2, alleleA: "N", alleleB: "C",
			expected: false,
		},
		"invalid second allele": {
			chromosome: "1", position: 2, alleleA: "G", alleleB: "GT",
			expected: false,
		},
		"chromosome not in encoding": {
			chromosome: "7", position: 2, alleleA: "G", alleleB: "C",
			expected: false,
		},
		"position before sequence start": {
			chromosome: "1", position: 0, alleleA: "G", alleleB: "C",
			expected: false,
		},
		"position past sequence end": {
			chromosome: "1", position: 5, alleleA: "G", alleleB: "C",
			expected: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := genome.IsReversed(test.chromosome, test.position, test.alleleA, test.alleleB, ref, encoding)
			assert.Equal(t, test.expected, got)
		})
	}
}
