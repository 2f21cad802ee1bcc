package export

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/chart"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
)

type staticLabels map[string]string

func (l staticLabels) Label(key string) string { return l[key] }

func sampleChart() chart.Chart {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := []*model.Sample{
		{Time: t0, Selector: "a", Value: model.NumberValue(1.5)},
		{Time: t0, Selector: "b", Value: model.NumberValue(10)},
		{Time: t0.Add(time.Second), Selector: "b", Value: model.NumberValue(11)},
	}
	selectors := []address.Selector{address.NewSelector("a"), address.NewSelector("b")}
	return chart.NewTransformer(time.UTC).Build(samples, selectors, staticLabels{"a": "温度", "b": "压力"})
}

func TestRecords(t *testing.T) {
	c := sampleChart()
	assert.Equal(t, []string{"时间", "温度", "压力"}, Header(c))

	records := Records(c)
	require.Len(t, records, 2)
	assert.Equal(t, []interface{}{"2024-03-01 00:00:00", 1.5, 10.0}, records[0])
	assert.Equal(t, []interface{}{"2024-03-01 00:00:01", nil, 11.0}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleChart(), ""))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheet}, f.GetSheetList())
	rows, err := f.GetRows(DefaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"时间", "温度", "压力"}, rows[0])
	assert.Equal(t, []string{"2024-03-01 00:00:00", "1.5", "10"}, rows[1])
	assert.Equal(t, []string{"2024-03-01 00:00:01", "", "11"}, rows[2])
}

func TestWriteDuckDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "history.duckdb")
	n, err := WriteDuckDB(context.Background(), path, "", sampleChart())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	var sum float64
	require.NoError(t, db.QueryRow("SELECT COUNT(*), SUM(value) FROM "+DefaultTable).Scan(&count, &sum))
	assert.Equal(t, 3, count)
	assert.InDelta(t, 22.5, sum, 1e-9)
}

func TestWriteDuckDBRejectsBadTableName(t *testing.T) {
	_, err := WriteDuckDB(context.Background(), filepath.Join(t.TempDir(), "x.duckdb"), "bad;name", sampleChart())
	assert.Error(t, err)
}
