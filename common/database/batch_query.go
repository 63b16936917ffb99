package database

import (
	"strings"

	"gorm.io/gorm"
)

type OrderColumn struct {
	ColumnName string
	Asc        bool
}

func Apply[I, O any](is []I, f func(I) O) []O {
	out := make([]O, len(is))
	for i := range is {
		out[i] = f(is[i])
	}
	return out
}

func Range(start, stop, step int) []int {
	res := make([]int, 0)
	for i := start; i < stop; i += step {
		res = append(res, i)
	}
	return res
}

// OrderClause renders cols as an ORDER BY list.
func OrderClause(cols []OrderColumn) string {
	return strings.Join(Apply(cols, func(c OrderColumn) string {
		if c.Asc {
			return c.ColumnName
		}
		return c.ColumnName + " desc"
	}), ",")
}

// KeysetClause renders the predicate selecting rows strictly after a row in cols order:
// (a>?) or ((a=?) and (b>?)) or ...
func KeysetClause(cols []OrderColumn) string {
	return "(" + strings.Join(Apply(Range(1, len(cols)+1, 1), func(i int) string {
		equalsPart := strings.Join(Apply(Range(1, i, 1), func(j int) string {
			return "(" + cols[j-1].ColumnName + "=?)"
		}), "and")
		lastSymbol := ">"
		if !cols[i-1].Asc {
			lastSymbol = "<"
		}
		lastPart := "(" + cols[i-1].ColumnName + lastSymbol + "?)"
		if equalsPart == "" {
			return lastPart
		}
		return "(" + equalsPart + ")and" + lastPart
	}), "or") + ")"
}

// KeysetArgs expands the key values of the last row into the placeholders of KeysetClause.
func KeysetArgs(values []any) []any {
	args := make([]any, 0, (1+len(values))*len(values)/2)
	for i := 1; i < len(values)+1; i++ {
		for j := 1; j < i+1; j++ {
			args = append(args, values[j-1])
		}
	}
	return args
}

// NotNullClause excludes rows with a null key column; keyset pagination cannot step over them.
func NotNullClause(cols []OrderColumn) string {
	return "(" + strings.Join(Apply(cols, func(c OrderColumn) string {
		return "(" + c.ColumnName + " is not null)"
	}), "and") + ")"
}

/*
BatchQuery pages through table in cols order, batch rows at a time.
Rows with a null key column are skipped. next returns an empty slice once the table is
exhausted and keeps returning it afterwards.
*/
func BatchQuery(db *gorm.DB, table string, batch int, cols []OrderColumn) (
	next func() ([]map[string]interface{}, error),
) {
	var (
		first    = true
		nextArg  []any
		finished = false
	)
	whereQuery := KeysetClause(cols)
	db = db.Table(table).Order(OrderClause(cols)).Limit(batch)
	next = func() ([]map[string]interface{}, error) {
		receiver := make([]map[string]interface{}, 0, batch)
		if finished {
			return receiver, nil
		}
		batchDB := db.Session(&gorm.Session{})
		if !first {
			batchDB = batchDB.Where(whereQuery, nextArg...)
		} else {
			first = false
			batchDB = batchDB.Where(NotNullClause(cols))
		}
		if err := batchDB.Find(&receiver).Error; err != nil {
			return nil, err
		}
		if len(receiver) < batch {
			finished = true
		}
		if len(receiver) > 0 {
			last := receiver[len(receiver)-1]
			nextArg = KeysetArgs(Apply(cols, func(c OrderColumn) any {
				return last[bareColumn(c.ColumnName)]
			}))
		}
		return receiver, nil
	}
	return
}

// bareColumn strips a table qualifier and quoting: `film`.`film_id` -> film_id.
func bareColumn(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, "`\"[]")
}
