package ezql

import (
	"strings"

	"ezdb/internal/ezerr"
	"ezdb/internal/table"
)

// reducers maps each verb to the function that turns its raw key:value
// arguments into a populated Query. Verb is filled in by the caller
// (parseOne) after a successful reduce.
var reducers = map[Verb]func(map[string]string) (*Query, error){
	VerbCreate:    reduceCreate,
	VerbSelect:    reduceSelect,
	VerbInsert:    reduceInsert,
	VerbUpdate:    reduceUpdate,
	VerbDelete:    reduceDelete,
	VerbLeftJoin:  reduceJoin,
	VerbInnerJoin: reduceUnimplementedJoin,
	VerbRightJoin: reduceUnimplementedJoin,
	VerbFullJoin:  reduceUnimplementedJoin,
	VerbSummary:   reduceSummary,
}

func requireArg(args map[string]string, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", ezerr.Newf(ezerr.Query, "missing required argument %q", key)
	}
	return v, nil
}

func reduceCreate(args map[string]string) (*Query, error) {
	return nil, ezerr.New(ezerr.Unimplemented, "CREATE is not implemented as a standalone verb; INSERT creates a table implicitly on first write")
}

func reduceUnimplementedJoin(args map[string]string) (*Query, error) {
	return nil, ezerr.New(ezerr.Unimplemented, "join variant is not implemented; only LEFT_JOIN is supported")
}

func reduceSelect(args map[string]string) (*Query, error) {
	tbl, err := requireArg(args, "table")
	if err != nil {
		return nil, err
	}
	keys, err := parseKeyRange(args["keys"])
	if err != nil {
		return nil, err
	}
	conds, err := parseConditions(args["conditions"])
	if err != nil {
		return nil, err
	}
	var cols []string
	if raw, ok := args["columns"]; ok && strings.TrimSpace(raw) != "*" {
		cols, err = parseNameList(raw)
		if err != nil {
			return nil, err
		}
	}
	return &Query{Table: tbl, Keys: keys, Conditions: conds, Columns: cols}, nil
}

func reduceDelete(args map[string]string) (*Query, error) {
	tbl, err := requireArg(args, "table")
	if err != nil {
		return nil, err
	}
	keys, err := parseKeyRange(args["keys"])
	if err != nil {
		return nil, err
	}
	conds, err := parseConditions(args["conditions"])
	if err != nil {
		return nil, err
	}
	return &Query{Table: tbl, Keys: keys, Conditions: conds}, nil
}

func reduceUpdate(args map[string]string) (*Query, error) {
	tbl, err := requireArg(args, "table")
	if err != nil {
		return nil, err
	}
	keys, err := parseKeyRange(args["keys"])
	if err != nil {
		return nil, err
	}
	conds, err := parseConditions(args["conditions"])
	if err != nil {
		return nil, err
	}
	updatesRaw, err := requireArg(args, "updates")
	if err != nil {
		return nil, err
	}
	updates, err := parseUpdates(updatesRaw)
	if err != nil {
		return nil, err
	}
	return &Query{Table: tbl, Keys: keys, Conditions: conds, Updates: updates}, nil
}

func reduceInsert(args map[string]string) (*Query, error) {
	tbl, err := requireArg(args, "table")
	if err != nil {
		return nil, err
	}
	data, err := requireArg(args, "data")
	if err != nil {
		return nil, err
	}
	csv := unescapeCSV(unquote(data))
	rows, err := table.FromCSVString(tbl, csv)
	if err != nil {
		return nil, err
	}
	return &Query{Table: tbl, InsertRows: rows}, nil
}

func reduceJoin(args map[string]string) (*Query, error) {
	tbl, err := requireArg(args, "table")
	if err != nil {
		return nil, err
	}
	right, err := requireArg(args, "right")
	if err != nil {
		return nil, err
	}
	onRaw, err := requireArg(args, "on")
	if err != nil {
		return nil, err
	}
	pair, err := parseNameList(onRaw)
	if err != nil {
		return nil, err
	}
	if len(pair) != 2 {
		return nil, ezerr.Newf(ezerr.Query, "left_join: on: expects (left_column, right_column), got %d elements", len(pair))
	}
	return &Query{Table: tbl, RightTable: right, JoinLeftCol: pair[0], JoinRightCol: pair[1]}, nil
}

func reduceSummary(args map[string]string) (*Query, error) {
	tbl, err := requireArg(args, "table")
	if err != nil {
		return nil, err
	}
	keys, err := parseKeyRange(args["keys"])
	if err != nil {
		return nil, err
	}
	conds, err := parseConditions(args["conditions"])
	if err != nil {
		return nil, err
	}
	statsRaw, err := requireArg(args, "statistics")
	if err != nil {
		return nil, err
	}
	stats, err := parseStatistics(statsRaw)
	if err != nil {
		return nil, err
	}
	return &Query{Table: tbl, Keys: keys, Conditions: conds, Statistics: stats}, nil
}

// parseKeyRange parses the "keys" argument's three forms (spec §4.3):
// `*` (all rows), `a..b` (inclusive span) or a parenthesized list. An
// absent value defaults to ALL.
func parseKeyRange(raw string) (KeyRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return KeyRange{Kind: RangeAll}, nil
	}
	if parts := splitTopLevel(raw, ".."); len(parts) == 2 {
		return KeyRange{Kind: RangeSpan, From: unquote(parts[0]), To: unquote(parts[1])}, nil
	}
	list, err := parseNameList(raw)
	if err != nil {
		return KeyRange{}, ezerr.Wrap(ezerr.Query, "keys", err)
	}
	return KeyRange{Kind: RangeList, List: list}, nil
}

// parseNameList parses a parenthesized, comma-separated list of bare or
// quoted tokens, e.g. "(a, b, c)" or "(\"x y\", z)".
func parseNameList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	inner := stripOuterParens(raw)
	pieces := splitTopLevel(inner, ",")
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, unquote(p))
	}
	return out, nil
}

// parseConditions parses the flat `(attr TEST value [AND|OR attr TEST
// value]*)` grammar. An empty/absent raw value means "match everything".
func parseConditions(raw string) (Conditions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Conditions{}, nil
	}
	inner := stripOuterParens(raw)
	if strings.TrimSpace(inner) == "" {
		return Conditions{}, nil
	}
	toks := tokenizeWhitespace(inner)
	if len(toks)%4 != 3 {
		return Conditions{}, ezerr.Newf(ezerr.Query, "conditions: malformed token stream (%d tokens)", len(toks))
	}

	var c Conditions
	i := 0
	for i < len(toks) {
		if i+3 > len(toks) {
			return Conditions{}, ezerr.New(ezerr.Query, "conditions: truncated predicate")
		}
		attr, testTok, val := toks[i], strings.ToUpper(toks[i+1]), toks[i+2]
		test, err := parseTestOp(testTok)
		if err != nil {
			return Conditions{}, err
		}
		c.Conds = append(c.Conds, Cond{Attribute: attr, Test: test, Value: val})
		i += 3
		if i == len(toks) {
			break
		}
		op := strings.ToUpper(toks[i])
		switch LogicOp(op) {
		case LogicAnd, LogicOr:
			c.Ops = append(c.Ops, LogicOp(op))
		default:
			return Conditions{}, ezerr.Newf(ezerr.Query, "conditions: expected AND/OR, got %q", toks[i])
		}
		i++
	}
	return c, nil
}

// testOpAliases maps the source grammar's snake_case and symbolic spellings
// (spec §8.4 scenarios use e.g. "starts_with", "greater_than") onto the
// canonical TestOp tags used by the AST and binary codec.
var testOpAliases = map[string]TestOp{
	"EQUALS": TestEquals, "EQ": TestEquals, "=": TestEquals, "==": TestEquals,
	"NOT_EQUALS": TestNotEquals, "NEQ": TestNotEquals, "!=": TestNotEquals,
	"LESS": TestLess, "LESS_THAN": TestLess, "<": TestLess,
	"GREATER": TestGreater, "GREATER_THAN": TestGreater, ">": TestGreater,
	"STARTS": TestStarts, "STARTS_WITH": TestStarts,
	"ENDS": TestEnds, "ENDS_WITH": TestEnds,
	"CONTAINS": TestContains,
}

func parseTestOp(s string) (TestOp, error) {
	if op, ok := testOpAliases[s]; ok {
		return op, nil
	}
	return "", ezerr.Newf(ezerr.Query, "conditions: unknown test operator %q", s)
}

// parseUpdates parses "((col OP val), (col OP val), ...)" into Update
// entries.
func parseUpdates(raw string) ([]Update, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ezerr.New(ezerr.Query, "updates: must name at least one column")
	}
	inner := stripOuterParens(raw)
	pieces := splitTopLevel(inner, ",")
	updates := make([]Update, 0, len(pieces))
	for _, piece := range pieces {
		body := stripOuterParens(strings.TrimSpace(piece))
		toks := tokenizeWhitespace(body)
		if len(toks) != 3 {
			return nil, ezerr.Newf(ezerr.Query, "updates: expected 'column OP value', got %q", piece)
		}
		op, err := parseUpdateOp(strings.ToUpper(toks[1]))
		if err != nil {
			return nil, err
		}
		updates = append(updates, Update{Attribute: toks[0], Op: op, Value: toks[2]})
	}
	return updates, nil
}

// updateOpAliases accepts both the symbolic arithmetic operators used in
// spec §8.4 scenario 3 ("price += 100") and the named forms for the
// string-only operators, which have no natural symbol.
var updateOpAliases = map[string]UpdateOp{
	"=": OpAssign, "ASSIGN": OpAssign,
	"+=": OpPlusEquals, "PLUS_EQUALS": OpPlusEquals,
	"-=": OpMinusEquals, "MINUS_EQUALS": OpMinusEquals,
	"*=": OpTimesEquals, "TIMES_EQUALS": OpTimesEquals,
	"APPEND": OpAppend, "PREPEND": OpPrepend,
}

func parseUpdateOp(s string) (UpdateOp, error) {
	if op, ok := updateOpAliases[s]; ok {
		return op, nil
	}
	return "", ezerr.Newf(ezerr.Query, "updates: unknown operator %q", s)
}

// parseStatistics parses "(col: (SUM, MEAN), col2: (MODE))" into a
// Statistic per column.
func parseStatistics(raw string) ([]Statistic, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ezerr.New(ezerr.Query, "statistics: must name at least one column")
	}
	inner := stripOuterParens(raw)
	pieces := splitTopLevel(inner, ",")
	stats := make([]Statistic, 0, len(pieces))
	for _, piece := range pieces {
		ci := topLevelIndex(piece, ':')
		if ci < 0 {
			return nil, ezerr.Newf(ezerr.Query, "statistics: expected 'column: (actions)', got %q", piece)
		}
		col := strings.TrimSpace(piece[:ci])
		actionsRaw := strings.TrimSpace(piece[ci+1:])
		names, err := parseNameList(actionsRaw)
		if err != nil {
			return nil, err
		}
		actions := make([]StatAction, 0, len(names))
		for _, n := range names {
			a, err := parseStatAction(strings.ToUpper(n))
			if err != nil {
				return nil, err
			}
			actions = append(actions, a)
		}
		stats = append(stats, Statistic{Column: col, Actions: actions})
	}
	return stats, nil
}

func parseStatAction(s string) (StatAction, error) {
	switch StatAction(s) {
	case StatSum, StatMean, StatMedian, StatMode, StatStdev:
		return StatAction(s), nil
	default:
		return "", ezerr.Newf(ezerr.Query, "statistics: unknown action %q", s)
	}
}

// unescapeCSV turns the two-character escape "\n" written inside a quoted
// data argument into an actual newline, since the outer tokenizer treats
// literal newlines inside quotes as ordinary characters but a query is
// usually authored on one line.
func unescapeCSV(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
