// Package export writes dashboard result sets to spreadsheet files for
// offline analysis.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/apppulse/apppulse/internal/model"
)

// WriteXLSX writes one dashboard payload as a workbook with a sheet per
// result set. The layout mirrors the dashboard: KPIs first, then the
// ranking, the scatter series and the sentiment distribution.
func WriteXLSX(data *model.DashboardData, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeKPISheet(f, data); err != nil {
		return err
	}
	if err := writeRankedSheet(f, data.RankedApps); err != nil {
		return err
	}
	if err := writeSeriesSheet(f, data.RatingVsInstalls); err != nil {
		return err
	}
	if err := writeSentimentSheet(f, data.SentimentSummary); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeKPISheet(f *excelize.File, data *model.DashboardData) error {
	const sheet = "KPIs"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	category := data.Category
	if category == "" {
		category = "All Categories"
	}
	rows := [][]any{
		{"Category", category},
		{"Distinct Apps", data.KPIs.DistinctApps},
		{"Average Rating", data.KPIs.AverageRating},
		{"Total Installs", data.KPIs.TotalInstalls},
		{"Installs Display", data.KPIs.InstallsDisplay},
	}
	return writeRows(f, sheet, rows)
}

func writeRankedSheet(f *excelize.File, ranked []model.RankedApp) error {
	const sheet = "Top Rated"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]any{{"App", "Average Rating"}}
	for _, r := range ranked {
		rows = append(rows, []any{r.Name, r.Rating})
	}
	return writeRows(f, sheet, rows)
}

func writeSeriesSheet(f *excelize.File, series []model.ScatterPoint) error {
	const sheet = "Rating vs Installs"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]any{{"App", "Average Rating", "Total Installs", "Price"}}
	for _, p := range series {
		rows = append(rows, []any{p.Name, p.Rating, p.Installs, p.Price})
	}
	return writeRows(f, sheet, rows)
}

func writeSentimentSheet(f *excelize.File, counts []model.SentimentCount) error {
	const sheet = "Sentiment"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]any{{"Sentiment", "Reviews"}}
	for _, c := range counts {
		rows = append(rows, []any{string(c.Sentiment), c.Count})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
