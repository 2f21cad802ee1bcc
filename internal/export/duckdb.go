package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/chart"
)

// DefaultTable 导出的表名
const DefaultTable = "history_samples"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WriteDuckDB 把图表写入DuckDB文件，每个非空值一行
// 表结构: ts TIMESTAMP, label VARCHAR, series VARCHAR, name VARCHAR, value DOUBLE
func WriteDuckDB(ctx context.Context, path, table string, c chart.Chart) (int, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return 0, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ts TIMESTAMP NOT NULL,
			label VARCHAR NOT NULL,
			series VARCHAR NOT NULL,
			name VARCHAR,
			value DOUBLE
		)
	`, table))
	if err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?, ?)", table))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, row := range c.Rows {
		for _, s := range c.Series {
			v := row.Get(s.Key)
			if !v.Valid {
				continue
			}
			if _, err := stmt.ExecContext(ctx, row.At, row.Time, s.Key, s.Label, v.Float); err != nil {
				return count, fmt.Errorf("insert %s at %s: %w", s.Key, row.Time, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	logrus.Infof("[Export] Wrote %d values to %s (%s)", count, path, table)
	return count, nil
}
