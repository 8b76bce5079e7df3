package genome_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genimp/genimp/internal/genome"
	"github.com/genimp/genimp/internal/model"
)

func TestLoadChromosomeLengthsSeedsCache(t *testing.T) {
	dir := t.TempDir()

	lengths, err := genome.LoadChromosomeLengths(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 249250621, lengths["1"])
	assert.Equal(t, 51304566, lengths["22"])
	assert.Equal(t, 155270560, lengths["X"])

	// The cache file exists and a second load reads it back unchanged.
	_, err = os.Stat(filepath.Join(dir, genome.LengthsFilename))
	require.NoError(t, err)

	again, err := genome.LoadChromosomeLengths(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, lengths, again)
}

func TestLoadChromosomeLengthsMissingChromosomes(t *testing.T) {
	dir := t.TempDir()

	// A cache missing chromosomes 9 and 12.
	content := ""
	for _, label := range model.LengthChromosomes() {
		if label == "9" || label == "12" {
			continue
		}
		content += label + "\t1000\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, genome.LengthsFilename), []byte(content), 0o644))

	_, err := genome.LoadChromosomeLengths(dir, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingData)
	assert.ErrorContains(t, err, "missing chromosomes: 12, 9")
}

func TestLoadChromosomeLengthsMalformedCache(t *testing.T) {
	tests := map[string]string{
		"too many fields": "1\t1000\textra\n",
		"not a number":    "1\tabc\n",
		"negative length": "1\t-5\n",
		"zero length":     "1\t0\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, genome.LengthsFilename), []byte(content), 0o644))

			_, err := genome.LoadChromosomeLengths(dir, nil)
			assert.ErrorIs(t, err, model.ErrInvalidData)
		})
	}
}
