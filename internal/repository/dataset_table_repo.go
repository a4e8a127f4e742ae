package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"salespulse/internal/pkg/tabular"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DatasetTableRepository manages the per-dataset physical tables.
// Identifiers are never taken from request input directly: callers pass
// names produced by the tabular sanitizer and the repository re-checks
// them before interpolating into DDL.
type DatasetTableRepository struct {
	db *gorm.DB
}

func NewDatasetTableRepository(db *gorm.DB) *DatasetTableRepository {
	return &DatasetTableRepository{db: db}
}

var ErrUnsafeIdentifier = errors.New("unsafe sql identifier")

var allowedColumnTypes = map[string]bool{
	tabular.TypeInteger:   true,
	tabular.TypeDecimal:   true,
	tabular.TypeBoolean:   true,
	tabular.TypeTimestamp: true,
	tabular.TypeDate:      true,
	tabular.TypeText:      true,
}

func checkIdentifiers(tableName string, columns []string) error {
	if !tabular.ValidTableName(tableName) {
		return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, tableName)
	}
	for _, col := range columns {
		if !tabular.ValidTableName(col) {
			return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, col)
		}
	}
	return nil
}

// CreateTable materializes the storage table for a dataset: the system
// row id, the sanitized user columns in order, and a creation stamp.
func (r *DatasetTableRepository) CreateTable(ctx context.Context, tableName string, columns []string, columnTypes map[string]string) error {
	if err := checkIdentifiers(tableName, columns); err != nil {
		return err
	}

	idColumn := `"__sys_id" INTEGER PRIMARY KEY AUTOINCREMENT`
	timestampDefault := "CURRENT_TIMESTAMP"
	if r.db.Dialector.Name() == "postgres" {
		idColumn = `"__sys_id" BIGSERIAL PRIMARY KEY`
		timestampDefault = "NOW()"
	}

	defs := make([]string, 0, len(columns)+2)
	defs = append(defs, idColumn)
	for _, col := range columns {
		sqlType := columnTypes[col]
		if !allowedColumnTypes[sqlType] {
			sqlType = tabular.TypeText
		}
		defs = append(defs, fmt.Sprintf("%q %s", col, sqlType))
	}
	defs = append(defs, fmt.Sprintf(`"__sys_created_at" TIMESTAMP DEFAULT %s`, timestampDefault))

	stmt := fmt.Sprintf("CREATE TABLE %q (%s)", tableName, strings.Join(defs, ", "))
	return r.db.WithContext(ctx).Exec(stmt).Error
}

// InsertBatch writes one chunk of coerced rows. Each row is positional
// and must match the columns slice.
func (r *DatasetTableRepository) InsertBatch(ctx context.Context, tableName string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkIdentifiers(tableName, columns); err != nil {
		return err
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}

	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	rowMarks := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	for _, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row has %d values, want %d", len(row), len(columns))
		}
		placeholders = append(placeholders, rowMarks)
		args = append(args, row...)
	}

	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES %s",
		tableName, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return r.db.WithContext(ctx).Exec(stmt, args...).Error
}

func (r *DatasetTableRepository) DropTable(ctx context.Context, tableName string) error {
	if !tabular.ValidTableName(tableName) {
		return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, tableName)
	}
	return r.db.WithContext(ctx).Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", tableName)).Error
}

// SelectSample reads up to limit rows in insertion order, skipping the
// system columns and rendering every value as a string.
func (r *DatasetTableRepository) SelectSample(ctx context.Context, tableName string, columns []string, limit int) ([]map[string]string, error) {
	if err := checkIdentifiers(tableName, columns); err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	stmt := fmt.Sprintf(`SELECT %s FROM %q ORDER BY "__sys_id" ASC LIMIT ?`,
		strings.Join(quoted, ", "), tableName)

	rows, err := r.db.WithContext(ctx).Raw(stmt, limit).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]string, len(columns))
		for i, col := range columns {
			record[col] = renderCell(values[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (r *DatasetTableRepository) CountRows(ctx context.Context, tableName string) (int64, error) {
	if !tabular.ValidTableName(tableName) {
		return 0, fmt.Errorf("%w: %q", ErrUnsafeIdentifier, tableName)
	}
	var count int64
	err := r.db.WithContext(ctx).Raw(fmt.Sprintf("SELECT COUNT(*) FROM %q", tableName)).Scan(&count).Error
	return count, err
}

func renderCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// IsTransient reports whether a database error is worth retrying:
// connection drops, deadlocks, serialization failures and resource
// exhaustion. Constraint and syntax errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exceptions
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case pgErr.Code == "40001" || pgErr.Code == "40P01": // serialization, deadlock
			return true
		case pgErr.Code == "57P03": // cannot connect now
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "connection reset")
}
