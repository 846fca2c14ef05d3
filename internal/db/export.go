package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
)

// bom marks exported files as UTF-8 for spreadsheet tools.
const bom = "\ufeff"

// ExportCSV runs query and writes the result to w as CSV: a byte-order mark,
// the column names, then one line per row. NULL becomes an empty cell and
// timestamps are written as RFC 3339. It returns the number of data rows.
func ExportCSV(ctx context.Context, pool Pool, query string, w io.Writer) (int, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "db: export query")
	}
	defer rows.Close()

	if _, err := io.WriteString(w, bom); err != nil {
		return 0, eris.Wrap(err, "db: export write bom")
	}
	cw := csv.NewWriter(w)

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return 0, eris.Wrap(err, "db: export write header")
	}

	n := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return n, eris.Wrapf(err, "db: export row %d", n+1)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return n, eris.Wrap(err, "db: export write row")
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, eris.Wrap(err, "db: export iterate")
	}

	cw.Flush()
	return n, eris.Wrap(cw.Error(), "db: export flush")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
