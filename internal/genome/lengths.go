package genome

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
)

// LengthsFilename is the chromosome length cache file inside the run
// directory: one line per chromosome, tab-separated label and length.
const LengthsFilename = "chromosome_lengths.txt"

// grch37Lengths are the GRCh37/hg19 chromosome lengths in bases, used to
// seed the cache file when none exists.
var grch37Lengths = map[string]int{
	"1": 249250621, "2": 243199373, "3": 198022430, "4": 191154276,
	"5": 180915260, "6": 171115067, "7": 159138663, "8": 146364022,
	"9": 141213431, "10": 135534747, "11": 135006516, "12": 133851895,
	"13": 115169878, "14": 107349540, "15": 102531392, "16": 90354753,
	"17": 81195210, "18": 78077248, "19": 59128983, "20": 63025520,
	"21": 48129895, "22": 51304566, "X": 155270560,
}

// LoadChromosomeLengths returns the per-chromosome base length map for the
// run. An existing cache file under dir is parsed and validated; otherwise
// the standard reference table is persisted there and returned.
func LoadChromosomeLengths(dir string, logger log.Logger) (map[string]int, error) {
	if logger == nil {
		logger = log.Noop
	}

	path := filepath.Join(dir, LengthsFilename)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not stat %s: %w", path, err)
		}
		logger.Debugf("No chromosome length cache, writing %s", path)
		if err := writeLengths(path, grch37Lengths); err != nil {
			return nil, err
		}
	}

	lengths, err := readLengths(path)
	if err != nil {
		return nil, err
	}

	if err := checkRequired(lengths); err != nil {
		return nil, err
	}

	return lengths, nil
}

func readLengths(path string) (map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer file.Close()

	lengths := map[string]int{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s: malformed line %q: %w", path, line, model.ErrInvalidData)
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil || length <= 0 {
			return nil, fmt.Errorf("%s: invalid chromosome length %q: %w", path, fields[1], model.ErrInvalidData)
		}
		lengths[fields[0]] = length
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	return lengths, nil
}

func writeLengths(path string, lengths map[string]int) error {
	labels := make([]string, 0, len(lengths))
	for label := range lengths {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var sb strings.Builder
	for _, label := range labels {
		fmt.Fprintf(&sb, "%s\t%d\n", label, lengths[label])
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}

func checkRequired(lengths map[string]int) error {
	var missing []string
	for _, label := range model.LengthChromosomes() {
		if _, ok := lengths[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	return fmt.Errorf("missing chromosomes: %s: %w", strings.Join(missing, ", "), model.ErrMissingData)
}
