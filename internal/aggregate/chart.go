package aggregate

import (
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
)

// renderFrequencyPie draws the MAF band distribution as a pie chart.
func renderFrequencyPie(path string, counts mafCounts) error {
	bands := []struct {
		label string
		count int
	}{
		{"MAF >= 5%", counts.geq05},
		{"1% <= MAF < 5%", counts.geq01lt05},
		{"MAF < 1%", counts.lt01},
		{"MAF not available", counts.nan},
	}

	var values []chart.Value
	for _, band := range bands {
		if band.count > 0 {
			values = append(values, chart.Value{
				Label: fmt.Sprintf("%s (%d)", band.label, band.count),
				Value: float64(band.count),
			})
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("no values to chart")
	}

	pie := chart.PieChart{
		Width:  512,
		Height: 512,
		Values: values,
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create chart file: %w", err)
	}
	defer file.Close()

	if err := pie.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("could not render chart: %w", err)
	}

	return nil
}
