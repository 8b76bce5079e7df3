package reference

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
)

// faiRecord is one line of a samtools FAIDX index: sequence name, length,
// byte offset of the first base, bases per line and bytes per line.
type faiRecord struct {
	length    int
	offset    int64
	lineBases int
	lineWidth int
}

// FaidxConfig is the configuration for the FAIDX-indexed FASTA reader.
type FaidxConfig struct {
	// FastaPath points to the reference FASTA. Its index is expected at
	// FastaPath + ".fai".
	FastaPath string
	Logger    log.Logger
}

func (c *FaidxConfig) defaults() error {
	if c.FastaPath == "" {
		return fmt.Errorf("fasta path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "reference.Faidx"})
	return nil
}

// Faidx reads single bases out of a FASTA file through its FAIDX index
// without loading sequences in memory.
type Faidx struct {
	file   *os.File
	index  map[string]faiRecord
	logger log.Logger
}

// OpenFaidx opens a FASTA reference and parses its FAIDX index.
func OpenFaidx(cfg FaidxConfig) (*Faidx, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := os.Stat(cfg.FastaPath); err != nil {
		return nil, fmt.Errorf("%s: no such file: %w", cfg.FastaPath, model.ErrMissingFile)
	}

	index, err := parseFai(cfg.FastaPath + ".fai")
	if err != nil {
		return nil, err
	}

	file, err := os.Open(cfg.FastaPath)
	if err != nil {
		return nil, fmt.Errorf("could not open reference: %w", err)
	}

	cfg.Logger.Debugf("Opened reference %s (%d sequences)", cfg.FastaPath, len(index))

	return &Faidx{file: file, index: index, logger: cfg.Logger}, nil
}

// Close closes the underlying FASTA file.
func (f *Faidx) Close() error { return f.file.Close() }

// HasLabel reports whether the index contains the sequence label.
func (f *Faidx) HasLabel(label string) bool {
	_, ok := f.index[label]
	return ok
}

// LengthOf returns the base length of the labeled sequence.
func (f *Faidx) LengthOf(label string) (int, error) {
	rec, ok := f.index[label]
	if !ok {
		return 0, fmt.Errorf("sequence %s: %w", label, model.ErrNotFound)
	}
	return rec.length, nil
}

// BaseAt returns the reference base at a 1-based position.
func (f *Faidx) BaseAt(label string, position int) (byte, error) {
	rec, ok := f.index[label]
	if !ok {
		return 0, fmt.Errorf("sequence %s: %w", label, model.ErrNotFound)
	}
	if position < 1 || position > rec.length {
		return 0, fmt.Errorf("position %d out of range for sequence %s: %w", position, label, model.ErrInvalidData)
	}

	// Sequence lines have lineBases bases padded to lineWidth bytes.
	zeroBased := int64(position - 1)
	line := zeroBased / int64(rec.lineBases)
	col := zeroBased % int64(rec.lineBases)
	fileOffset := rec.offset + line*int64(rec.lineWidth) + col

	base := make([]byte, 1)
	if _, err := f.file.ReadAt(base, fileOffset); err != nil {
		return 0, fmt.Errorf("could not read reference base: %w", err)
	}

	return base[0], nil
}

func parseFai(path string) (map[string]faiRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fasta := strings.TrimSuffix(path, ".fai")
			return nil, fmt.Errorf("%s: should be indexed using FAIDX: %w", fasta, model.ErrMissingFile)
		}
		return nil, fmt.Errorf("could not open index: %w", err)
	}
	defer file.Close()

	index := map[string]faiRecord{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return nil, fmt.Errorf("%s: malformed FAIDX line %q: %w", path, line, model.ErrInvalidData)
		}

		length, err1 := strconv.Atoi(fields[1])
		offset, err2 := strconv.ParseInt(fields[2], 10, 64)
		lineBases, err3 := strconv.Atoi(fields[3])
		lineWidth, err4 := strconv.Atoi(fields[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || lineBases < 1 || lineWidth < 1 {
			return nil, fmt.Errorf("%s: malformed FAIDX line %q: %w", path, line, model.ErrInvalidData)
		}

		index[fields[0]] = faiRecord{
			length:    length,
			offset:    offset,
			lineBases: lineBases,
			lineWidth: lineWidth,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read index: %w", err)
	}

	return index, nil
}

var _ Reference = (*Faidx)(nil)
