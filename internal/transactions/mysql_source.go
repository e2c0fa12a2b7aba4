package transactions

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"

	"github.com/go-sql-driver/mysql"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSource reads purchase rows from a plain database/sql connection. It is
// used for MySQL/MariaDB stores that are not managed by the service's own
// migrations.
type SQLSource struct {
	db    *sql.DB
	query string
}

// NewMySQLSource opens a MySQL connection pool for the given DSN.
func NewMySQLSource(dsn, table string) (*SQLSource, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// purchase dates are parsed at ingestion, so keep them as text.
	cfg.ParseTime = false

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return NewSQLSource(sql.OpenDB(connector), table)
}

// NewSQLSource wraps an existing pool.
func NewSQLSource(conn *sql.DB, table string) (*SQLSource, error) {
	if conn == nil {
		return nil, fmt.Errorf("sql db required")
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSource{
		db:    conn,
		query: fmt.Sprintf("SELECT customer_id, product, purchase_date, quantity FROM `%s`", table),
	}, nil
}

// Fetch implements Source.
func (s *SQLSource) Fetch(ctx context.Context) ([]RawRow, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]RawRow, 0)
	for rows.Next() {
		var (
			customer sql.NullString
			product  sql.NullString
			date     sql.NullString
			quantity sql.NullFloat64
		)
		if err := rows.Scan(&customer, &product, &date, &quantity); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		row := RawRow{
			CustomerID: customer.String,
			Product:    product.String,
			Date:       date.String,
			Quantity:   math.NaN(),
		}
		if quantity.Valid {
			row.Quantity = quantity.Float64
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Ping verifies the connection.
func (s *SQLSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *SQLSource) Close() error {
	return s.db.Close()
}
