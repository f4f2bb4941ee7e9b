package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type queryStartKey struct{}

// registerAround installs before and after hooks on every GORM callback chain.
// Hook names are prefix:before_<op> and prefix:after_<op>.
func registerAround(db *gorm.DB, prefix string, before func(*gorm.DB), after func(op string) func(*gorm.DB)) error {
	cb := db.Callback()
	chains := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, c := range chains {
		if err := c.before(prefix+":before_"+c.op, before); err != nil {
			return err
		}
		if err := c.after(prefix+":after_"+c.op, after(c.op)); err != nil {
			return err
		}
	}
	return nil
}

// markQueryStart stamps the statement context with the current time
func markQueryStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func queryElapsed(db *gorm.DB) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(queryStartKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// sqlOperation maps a callback chain to its SQL verb. Row and raw chains are
// classified from the statement text, so SELECT ... FOR UPDATE stays a SELECT.
func sqlOperation(op, sql string) string {
	switch op {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	switch verb = strings.ToUpper(verb); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "SET":
		return verb
	default:
		return "OTHER"
	}
}

// Postgres SQLSTATEs that reservation writers are expected to hit under contention
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
)

// contentionKind names the contention an error represents, or "" for other errors.
// GORM may already have translated a unique violation to gorm.ErrDuplicatedKey.
func contentionKind(err error) string {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "unique_violation"
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	switch pgErr.Code {
	case sqlStateLockNotAvailable:
		return "lock_timeout"
	case sqlStateUniqueViolation:
		return "unique_violation"
	case sqlStateSerializationFailure:
		return "serialization_failure"
	default:
		return ""
	}
}
