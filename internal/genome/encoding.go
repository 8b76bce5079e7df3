package genome

import (
	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/reference"
)

// ResolveChromosomeEncoding maps each study chromosome label ("1".."24") to
// the literal sequence label the reference panel uses for it, trying the
// bare label, the "chr"-prefixed label, and the X/Y letter aliases for 23
// and 24. Labels with no match are logged and omitted; downstream steps for
// those chromosomes are skipped rather than aborted.
func ResolveChromosomeEncoding(ref reference.Reference, logger log.Logger) map[string]string {
	if logger == nil {
		logger = log.Noop
	}

	encoding := map[string]string{}
	for _, label := range model.EncodingChromosomes() {
		candidates := []string{label, "chr" + label}
		switch label {
		case "23":
			candidates = append(candidates, "X", "chrX")
		case "24":
			candidates = append(candidates, "Y", "chrY")
		}

		found := false
		for _, candidate := range candidates {
			if ref.HasLabel(candidate) {
				encoding[label] = candidate
				found = true
				break
			}
		}
		if !found {
			logger.Warningf("%s: chromosome not in reference", label)
		}
	}

	return encoding
}
