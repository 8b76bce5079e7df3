package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/genimp/genimp/internal/aggregate"
)

// chromosomeForms maps a chromosome given in either letter or numeric form
// to the PLINK numeric label used for naming and the letter label the length
// table uses.
func chromosomeForms(chromosome string) (numeric, lengthLabel string) {
	switch chromosome {
	case "X", "23":
		return "23", "X"
	case "Y", "24":
		return "24", "Y"
	default:
		return chromosome, chromosome
	}
}

// mergeChromosome concatenates the per-segment imputation outputs into one
// whole-chromosome file, in genome order.
func (s *Service) mergeChromosome(ctx context.Context, runDir, chromosome string) error {
	taskName := "merge_chr" + chromosome

	done, err := s.ledger.IsCompleted(ctx, taskName)
	if err != nil {
		return fmt.Errorf("could not check task %s: %w", taskName, err)
	}
	if done {
		s.logger.Debugf("Skipping completed task: %s", taskName)
		return nil
	}

	if err := s.ledger.RegisterTask(ctx, taskName); err != nil {
		return fmt.Errorf("could not register task %s: %w", taskName, err)
	}

	if err := s.writeMergedOutput(runDir, chromosome); err != nil {
		if markErr := s.ledger.MarkIncomplete(ctx, taskName); markErr != nil {
			s.logger.Errorf("could not mark task %s incomplete: %s", taskName, markErr)
		}
		return fmt.Errorf("task %s failed: %w", taskName, err)
	}

	if err := s.ledger.MarkCompleted(ctx, taskName); err != nil {
		return fmt.Errorf("could not mark task %s completed: %w", taskName, err)
	}

	s.logger.Infof("Completed task: %s", taskName)
	return nil
}

func (s *Service) writeMergedOutput(runDir, chromosome string) error {
	chromDir := filepath.Join(runDir, "chr"+chromosome)
	segmentFiles, err := filepath.Glob(filepath.Join(chromDir, "chr"+chromosome+".*.impute2"))
	if err != nil {
		return fmt.Errorf("could not list segment outputs: %w", err)
	}
	if len(segmentFiles) == 0 {
		return fmt.Errorf("chr%s: no segment outputs to merge", chromosome)
	}

	if err := aggregate.SortSegmentFiles(segmentFiles); err != nil {
		return err
	}

	finalDir := filepath.Join(chromDir, "final_impute2")
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	outPath := filepath.Join(finalDir, "chr"+chromosome+".imputed.impute2")
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("could not create merged output: %w", err)
	}
	defer out.Close()

	for _, path := range segmentFiles {
		if err := appendFile(out, path); err != nil {
			return err
		}
	}

	return out.Close()
}

func appendFile(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open segment output: %w", err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not merge %s: %w", path, err)
	}

	return nil
}
