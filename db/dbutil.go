package db

import (
	"context"
	"fmt"
)

// Tables are the tables satswap owns, in an order that is safe to truncate
var Tables = []string{"notifications", "orders", "users"}

// DumpTable reads all rows from the given table into raw strings. Each
// element in the returned value is a row, and each column within that row
// is an element of the inner slice. NULL columns are rendered as "NULL".
func DumpTable(ctx context.Context, q Querier, table string) ([][]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT * FROM `+table)
	if err != nil {
		return nil, err
	}
	defer CloseRows(rows)

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	raw := make([][]byte, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	result := [][]string{}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, column := range raw {
			if column == nil {
				row[i] = "NULL"
			} else {
				row[i] = string(column)
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Truncate empties every satswap table and restarts the id sequences
func Truncate(ctx context.Context, q Querier) error {
	for _, table := range Tables {
		if _, err := q.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", table)); err != nil {
			return fmt.Errorf("could not truncate %s: %w", table, err)
		}
	}
	return nil
}
