package web

import (
	"net/url"
	"strconv"
	"strings"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/selectx"
)

var opByWire = map[string]selectx.Operator{
	"eq":   selectx.Eq,
	"ne":   selectx.Ne,
	"lt":   selectx.Lt,
	"le":   selectx.Le,
	"gt":   selectx.Gt,
	"ge":   selectx.Ge,
	"like": selectx.Like,
}

// parseFilters decodes the `column=op.value` query parameters from
// spec.md §6, plus the special `_change_id=gt.N` filter used to select
// rows touched after a given commit.
func parseFilters(q url.Values) ([]selectx.Filter, int, error) {
	var filters []selectx.Filter
	changeIDFloor := 0

	for col, vals := range q {
		if col == "limit" || col == "offset" {
			continue
		}
		for _, v := range vals {
			op, rest, ok := strings.Cut(v, ".")
			if !ok {
				return nil, 0, errkind.New(errkind.ProtocolError, "filter value must be \"op.value\": "+v)
			}

			if col == "_change_id" {
				if op != "gt" {
					return nil, 0, errkind.New(errkind.ProtocolError, "_change_id only supports the gt operator")
				}
				n, err := strconv.Atoi(rest)
				if err != nil {
					return nil, 0, errkind.New(errkind.ProtocolError, "_change_id value must be an integer")
				}
				changeIDFloor = n
				continue
			}

			switch op {
			case "is":
				switch rest {
				case "null":
					filters = append(filters, selectx.Filter{Column: col, Operator: selectx.IsNull})
				case "not_null":
					filters = append(filters, selectx.Filter{Column: col, Operator: selectx.IsNotNull})
				default:
					return nil, 0, errkind.New(errkind.ProtocolError, "is filter must be \"is.null\" or \"is.not_null\"")
				}
			case "in":
				parts := strings.Split(rest, ",")
				vs := make([]any, len(parts))
				for i, p := range parts {
					vs[i] = p
				}
				filters = append(filters, selectx.Filter{Column: col, Operator: selectx.In, Value: vs})
			default:
				sop, ok := opByWire[op]
				if !ok {
					return nil, 0, errkind.New(errkind.ProtocolError, "unknown filter operator: "+op)
				}
				filters = append(filters, selectx.Filter{Column: col, Operator: sop, Value: rest})
			}
		}
	}
	return filters, changeIDFloor, nil
}

func parseIntParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errkind.New(errkind.ProtocolError, name+" must be an integer")
	}
	return n, nil
}
