package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Smalllight01/plc-admin-sub001/internal/chart"
)

// DefaultSheet 导出的工作表名
const DefaultSheet = "历史数据"

// TimeHeader 时间列表头
const TimeHeader = "时间"

// Header 返回表头：时间列加每条曲线的显示名称
func Header(c chart.Chart) []string {
	header := make([]string, 0, len(c.Series)+1)
	header = append(header, TimeHeader)
	for _, s := range c.Series {
		header = append(header, s.Label)
	}
	return header
}

// Records 把图表行展开为单元格，空值为nil
func Records(c chart.Chart) [][]interface{} {
	records := make([][]interface{}, 0, len(c.Rows))
	for _, row := range c.Rows {
		record := make([]interface{}, 0, len(c.Series)+1)
		record = append(record, row.Time)
		for _, s := range c.Series {
			v := row.Get(s.Key)
			if v.Valid {
				record = append(record, v.Float)
			} else {
				record = append(record, nil)
			}
		}
		records = append(records, record)
	}
	return records
}

// WriteXLSX 把图表写为xlsx
func WriteXLSX(w io.Writer, c chart.Chart, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	header := Header(c)
	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, record := range Records(c) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
