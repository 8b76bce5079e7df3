package aggregate

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
)

// mafNotAvailable is the literal used in MAF tables for sites whose minor
// allele frequency could not be computed.
const mafNotAvailable = "NA"

// AggregatorConfig is the configuration for the result aggregator.
type AggregatorConfig struct {
	// Chromosomes to fold statistics over. Defaults to the autosomes.
	Chromosomes []string
	// ChartingEnabled controls whether the frequency pie chart is rendered.
	// When disabled the "frequency_pie" output key is an empty string.
	ChartingEnabled bool
	Logger          log.Logger
}

func (c *AggregatorConfig) defaults() error {
	if len(c.Chromosomes) == 0 {
		c.Chromosomes = model.Autosomes()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "aggregate.Aggregator"})
	return nil
}

// Aggregator folds per-chromosome imputation outputs into genome-wide
// summaries.
type Aggregator struct {
	chromosomes []string
	charting    bool
	logger      log.Logger
}

// NewAggregator creates a new result aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Aggregator{
		chromosomes: cfg.Chromosomes,
		charting:    cfg.ChartingEnabled,
		logger:      cfg.Logger,
	}, nil
}

// mafCounts accumulates per-band marker counts. The <0.05 and [0.01,0.05)
// bands overlap with the other two on purpose: the summary reports both
// complementary threshold views (0.01 and 0.05).
type mafCounts struct {
	withMAF   int
	geq01     int
	geq05     int
	lt05      int
	lt01      int
	geq01lt05 int
	nan       int
}

func (c *mafCounts) add(maf float64) {
	c.withMAF++
	if maf >= 0.01 {
		c.geq01++
	} else {
		c.lt01++
	}
	if maf >= 0.05 {
		c.geq05++
	} else {
		c.lt05++
	}
	if maf >= 0.01 && maf < 0.05 {
		c.geq01lt05++
	}
}

// FoldMAFStatistics reads each chromosome's MAF table and good-sites list
// under runDir and folds them into the genome-wide MAF summary. Only sites
// present in the good-sites list count; a good site with an unavailable MAF
// triggers a per-chromosome warning and is excluded.
func (a *Aggregator) FoldMAFStatistics(runDir string) (map[string]string, error) {
	var counts mafCounts
	for _, chromosome := range a.chromosomes {
		if err := a.foldChromosome(runDir, chromosome, &counts); err != nil {
			return nil, err
		}
	}

	if counts.withMAF == 0 {
		a.logger.Warningf("There were no marker with MAF (something went wrong)")
		return zeroStatistics(counts.nan), nil
	}

	stats := map[string]string{
		"nb_marker_with_maf":   strconv.Itoa(counts.withMAF),
		"nb_maf_geq_01":        strconv.Itoa(counts.geq01),
		"pct_maf_geq_01":       percent(counts.geq01, counts.withMAF),
		"nb_maf_geq_05":        strconv.Itoa(counts.geq05),
		"pct_maf_geq_05":       percent(counts.geq05, counts.withMAF),
		"nb_maf_lt_05":         strconv.Itoa(counts.lt05),
		"pct_maf_lt_05":        percent(counts.lt05, counts.withMAF),
		"nb_maf_lt_01":         strconv.Itoa(counts.lt01),
		"pct_maf_lt_01":        percent(counts.lt01, counts.withMAF),
		"nb_maf_geq_01_lt_05":  strconv.Itoa(counts.geq01lt05),
		"pct_maf_geq_01_lt_05": percent(counts.geq01lt05, counts.withMAF),
		"nb_maf_nan":           strconv.Itoa(counts.nan),
		"frequency_pie":        "",
	}

	if a.charting {
		piePath := filepath.Join(runDir, "frequency_pie.png")
		if err := renderFrequencyPie(piePath, counts); err != nil {
			a.logger.Warningf("could not render frequency pie: %s", err)
		} else {
			stats["frequency_pie"] = piePath
		}
	}

	return stats, nil
}

func (a *Aggregator) foldChromosome(runDir, chromosome string, counts *mafCounts) error {
	base := filepath.Join(runDir, "chr"+chromosome, "final_impute2", "chr"+chromosome+".imputed")
	goodSites, err := readGoodSites(base + ".good_sites")
	if err != nil {
		return err
	}

	file, err := os.Open(base + ".maf")
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: no such file: %w", base+".maf", model.ErrMissingFile)
		}
		return fmt.Errorf("could not open MAF file: %w", err)
	}
	defer file.Close()

	nameCol, mafCol := -1, -1
	hasNaN := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		// First non-empty line is the header.
		if nameCol < 0 {
			for i, field := range fields {
				switch field {
				case "name":
					nameCol = i
				case "maf":
					mafCol = i
				}
			}
			if nameCol < 0 || mafCol < 0 {
				return fmt.Errorf("%s: missing name/maf columns: %w", base+".maf", model.ErrInvalidData)
			}
			continue
		}

		if len(fields) <= nameCol || len(fields) <= mafCol {
			return fmt.Errorf("%s: malformed line %q: %w", base+".maf", line, model.ErrInvalidData)
		}

		name, value := fields[nameCol], fields[mafCol]
		if !goodSites[name] {
			continue
		}

		if value == mafNotAvailable {
			counts.nan++
			hasNaN = true
			continue
		}

		maf, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %s: invalid MAF: %w", name, value, model.ErrInvalidData)
		}
		// A minor allele frequency is at most 0.5 by definition.
		if maf < 0 || maf > 0.5 {
			return fmt.Errorf("%s: %s: invalid MAF: %w", name, round3(maf), model.ErrInvalidData)
		}

		counts.add(maf)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not read MAF file: %w", err)
	}

	if hasNaN {
		a.logger.Warningf("chr%s: good sites with invalid MAF (NaN)", chromosome)
	}

	return nil
}

func readGoodSites(path string) (map[string]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: no such file: %w", path, model.ErrMissingFile)
		}
		return nil, fmt.Errorf("could not open good sites file: %w", err)
	}
	defer file.Close()

	sites := map[string]bool{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			sites[name] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read good sites file: %w", err)
	}

	return sites, nil
}

func zeroStatistics(nan int) map[string]string {
	return map[string]string{
		"nb_marker_with_maf":   "0",
		"nb_maf_geq_01":        "0",
		"pct_maf_geq_01":       "0.0",
		"nb_maf_geq_05":        "0",
		"pct_maf_geq_05":       "0.0",
		"nb_maf_lt_05":         "0",
		"pct_maf_lt_05":        "0.0",
		"nb_maf_lt_01":         "0",
		"pct_maf_lt_01":        "0.0",
		"nb_maf_geq_01_lt_05":  "0",
		"pct_maf_geq_01_lt_05": "0.0",
		"nb_maf_nan":           strconv.Itoa(nan),
		"frequency_pie":        "",
	}
}

func percent(n, total int) string {
	return fmt.Sprintf("%.1f", float64(n)/float64(total)*100)
}

// round3 renders an out-of-domain MAF rounded to 3 decimals for the error
// message.
func round3(value float64) string {
	return strconv.FormatFloat(math.Round(value*1000)/1000, 'g', -1, 64)
}
