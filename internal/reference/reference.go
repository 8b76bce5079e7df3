// Package reference provides indexed random access to a reference genome,
// used to reconcile chromosome naming and strand orientation between a study
// panel and the reference.
package reference

// Reference is an indexed reference genome reader.
type Reference interface {
	// HasLabel reports whether the reference contains a sequence with the
	// given record label.
	HasLabel(label string) bool

	// LengthOf returns the base length of the labeled sequence.
	LengthOf(label string) (int, error)

	// BaseAt returns the single reference base at a 1-based position.
	BaseAt(label string, position int) (byte, error)
}
