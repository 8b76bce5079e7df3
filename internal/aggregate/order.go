package aggregate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/genimp/genimp/internal/model"
)

var segmentFilePattern = regexp.MustCompile(`chr(\d+)\.(\d+)_(\d+)`)

// FileSortKey parses the "(chromosome, start, end)" triple out of a segment
// output filename of the form "...chr<N>.<start>_<end>.<suffix>". Sorting
// filenames by this key yields ascending genome order, which lexical order
// does not ("chr1.1000_100000" sorts before "chr1.1_100" lexically).
func FileSortKey(filename string) (chromosome, start, end int, err error) {
	match := segmentFilePattern.FindStringSubmatch(filepath.Base(filename))
	if match == nil {
		return 0, 0, 0, fmt.Errorf("%s: not a segment filename: %w", filename, model.ErrInvalidData)
	}

	// The pattern guarantees digits only.
	chromosome, _ = strconv.Atoi(match[1])
	start, _ = strconv.Atoi(match[2])
	end, _ = strconv.Atoi(match[3])
	return chromosome, start, end, nil
}

// SortSegmentFiles sorts segment output filenames in place into ascending
// genome order: by chromosome, then segment start, then segment end.
func SortSegmentFiles(filenames []string) error {
	type key struct{ chromosome, start, end int }

	keys := make(map[string]key, len(filenames))
	for _, filename := range filenames {
		chromosome, start, end, err := FileSortKey(filename)
		if err != nil {
			return err
		}
		keys[filename] = key{chromosome, start, end}
	}

	sort.Slice(filenames, func(i, j int) bool {
		a, b := keys[filenames[i]], keys[filenames[j]]
		if a.chromosome != b.chromosome {
			return a.chromosome < b.chromosome
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.end < b.end
	})

	return nil
}
