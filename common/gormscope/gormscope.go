package gormscope

import (
	"fmt"

	"gorm.io/gorm"
)

type Scope = func(db *gorm.DB) *gorm.DB

// Where filters by a raw condition. An empty condition leaves db as it is.
func Where(cond string, args ...interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if cond == "" {
			return db
		}
		return db.Where(cond, args...)
	}
}

// Columns restricts the selected columns; none selects all.
func Columns(cols ...string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if len(cols) == 0 {
			return db
		}
		return db.Select(cols)
	}
}

// DateTimeRange keeps rows whose column lies in [start, end]. Empty bounds are open.
func DateTimeRange(column, start, end string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if len(start) > 0 {
			db = db.Where(fmt.Sprintf("%s>=?", column), start)
		}
		if len(end) > 0 {
			db = db.Where(fmt.Sprintf("%s<=?", column), end)
		}
		return db
	}
}

// Apply runs scopes on db right away, so the result can be chained further.
func Apply(db *gorm.DB, scopes ...Scope) *gorm.DB {
	for _, scope := range scopes {
		db = scope(db)
	}
	return db
}
