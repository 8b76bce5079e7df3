package model

import (
	"fmt"
	"strconv"
)

// Segment is a contiguous base interval of one chromosome, the unit of
// parallel phasing/imputation work. Start and End are 1-based and inclusive.
type Segment struct {
	Chromosome string
	Start      int
	End        int
}

// Region returns the canonical "chr<N>.<start>_<end>" form of the segment,
// used in task names and output filenames.
func (s Segment) Region() string {
	return fmt.Sprintf("chr%s.%d_%d", s.Chromosome, s.Start, s.End)
}

// MarkerAllele is a genomic site with its reported allele pair, used as input
// to strand reconciliation.
type MarkerAllele struct {
	Chromosome string
	Position   int
	AlleleA    string
	AlleleB    string
}

// Autosomes returns the chromosome labels "1".."22".
func Autosomes() []string {
	chroms := make([]string, 0, 22)
	for i := 1; i <= 22; i++ {
		chroms = append(chroms, strconv.Itoa(i))
	}
	return chroms
}

// LengthChromosomes returns the labels the chromosome length table must
// cover: the autosomes plus "X".
func LengthChromosomes() []string {
	return append(Autosomes(), "X")
}

// EncodingChromosomes returns the study labels resolved against a reference
// panel, in PLINK numeric form: "1".."22" plus "23" (X) and "24" (Y).
func EncodingChromosomes() []string {
	return append(Autosomes(), "23", "24")
}
