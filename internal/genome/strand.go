package genome

import (
	"strings"

	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/reference"
)

// complement maps each nucleotide to its complementary-strand base.
var complement = map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}

// IsReversed reports whether the allele pair at the given site is stated on
// the opposite strand from the reference: the complement of the reference
// base equals the first allele. Non-ACGT alleles, chromosomes missing from
// the encoding and out-of-range positions all report false. Comparison is
// case-insensitive.
func IsReversed(chromosome string, position int, alleleA, alleleB string, ref reference.Reference, encoding map[string]string) bool {
	a := strings.ToUpper(alleleA)
	b := strings.ToUpper(alleleB)
	if !validAllele(a) || !validAllele(b) {
		return false
	}

	label, ok := encoding[chromosome]
	if !ok {
		return false
	}

	length, err := ref.LengthOf(label)
	if err != nil || position < 1 || position > length {
		return false
	}

	base, err := ref.BaseAt(label, position)
	if err != nil {
		return false
	}

	comp, ok := complement[upperByte(base)]
	if !ok {
		return false
	}

	return comp == a[0]
}

// ReversedStrandMarkers filters markers down to those whose allele pair is
// stated on the opposite strand from the reference.
func ReversedStrandMarkers(markers []model.MarkerAllele, ref reference.Reference, encoding map[string]string) []model.MarkerAllele {
	var reversed []model.MarkerAllele
	for _, marker := range markers {
		if IsReversed(marker.Chromosome, marker.Position, marker.AlleleA, marker.AlleleB, ref, encoding) {
			reversed = append(reversed, marker)
		}
	}
	return reversed
}

func validAllele(allele string) bool {
	if len(allele) != 1 {
		return false
	}
	_, ok := complement[allele[0]]
	return ok
}

func upperByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
