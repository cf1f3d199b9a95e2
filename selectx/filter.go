package selectx

import (
	"fmt"
	"strings"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

var comparisonSQL = map[Operator]string{
	Eq:   "=",
	Ne:   "<>",
	Lt:   "<",
	Le:   "<=",
	Gt:   ">",
	Ge:   ">=",
	Like: "like",
}

// renderFilter renders one Filter as a SQL boolean expression plus its
// bound arguments, with placeholders numbered starting at argStart.
func renderFilter(d sqlgen.Dialect, f Filter, argStart int) (string, []any, error) {
	col := d.QuoteIdent(f.Column)

	switch f.Operator {
	case Eq, Ne, Lt, Le, Gt, Ge, Like:
		return fmt.Sprintf("%s %s %s", col, comparisonSQL[f.Operator], d.BindPlaceholder(argStart)), []any{f.Value}, nil

	case IsNull:
		return col + " is null", nil, nil

	case IsNotNull:
		return col + " is not null", nil, nil

	case In:
		values, ok := f.Value.([]any)
		if !ok {
			if ss, ok2 := f.Value.([]string); ok2 {
				values = make([]any, len(ss))
				for i, s := range ss {
					values[i] = s
				}
			} else {
				return "", nil, errkind.New(errkind.ProtocolError, "in filter requires a list of values")
			}
		}
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = d.BindPlaceholder(argStart + i)
		}
		return fmt.Sprintf("%s in (%s)", col, strings.Join(placeholders, ", ")), values, nil

	case InSubquery:
		if f.Sub == nil {
			return "", nil, errkind.New(errkind.ProtocolError, "in_subquery filter requires a nested select")
		}
		subCols := f.Sub.Projection
		if len(subCols) != 1 {
			return "", nil, errkind.New(errkind.ProtocolError, "in_subquery's nested select must project exactly one column")
		}
		subQuery, subArgs, err := build(d, *f.Sub, subCols, argStart, false)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s in (%s)", col, subQuery), subArgs, nil

	default:
		return "", nil, errkind.New(errkind.ProtocolError, fmt.Sprintf("unknown filter operator %q", f.Operator))
	}
}
