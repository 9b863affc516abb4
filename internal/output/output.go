// Package output 将唯一结果写成 Excel 工作簿。
package output

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"newswalker/internal/model"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Results"

var header = []interface{}{"date", "title", "description", "query_match_count", "price_mentioned"}

// WriteXLSX 将结果写入 path，目录不存在时自动创建。
// 结果为空时仍会产出只有表头的工作簿。
func WriteXLSX(path string, results []model.UniqueResult, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []interface{}{
			r.Date.Format("2006-01-02"),
			r.Title,
			r.Description,
			r.MatchCount,
			r.PriceMentioned,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	logger.Info("workbook written",
		slog.String("path", path),
		slog.Int("rows", len(results)))
	return nil
}
