package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type dialect struct {
	driver  string
	schema  []string
	pragmas []string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		driver: DriverPostgres,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id UUID PRIMARY KEY,
				title VARCHAR(200) NOT NULL,
				description VARCHAR(1000) NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('Pending', 'InProgress', 'Completed', 'Cancelled')),
				priority TEXT NOT NULL CHECK (priority IN ('Low', 'Medium', 'High', 'Critical')),
				due_date TIMESTAMPTZ NOT NULL,
				created_date TIMESTAMPTZ NOT NULL,
				completed_date TIMESTAMPTZ
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority)`,
		},
	},
	DriverSQLite: {
		driver: DriverSQLite,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL CHECK (length(title) <= 200),
				description TEXT NOT NULL CHECK (length(description) <= 1000),
				status TEXT NOT NULL CHECK (status IN ('Pending', 'InProgress', 'Completed', 'Cancelled')),
				priority TEXT NOT NULL CHECK (priority IN ('Low', 'Medium', 'High', 'Critical')),
				due_date TEXT NOT NULL,
				created_date TEXT NOT NULL,
				completed_date TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority)`,
		},
		pragmas: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
	return d, nil
}

// rebind turns ? placeholders into $n for postgres. Queries here never carry
// a literal question mark.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeValue scans TIMESTAMPTZ (time.Time) and TEXT (RFC 3339) columns alike.
type timeValue struct {
	t     time.Time
	valid bool
}

func (v *timeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		v.valid = false
		return nil
	case time.Time:
		v.t, v.valid = s.UTC(), true
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("unsupported time column type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", s, err)
	}
	v.t, v.valid = t.UTC(), true
	return nil
}
