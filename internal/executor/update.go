package executor

import (
	"sort"
	"strconv"

	"ezdb/internal/ezerr"
	"ezdb/internal/ezql"
	"ezdb/internal/keystring"
	"ezdb/internal/table"
)

// plannedUpdate is a validated, type-resolved Update ready to apply. Every
// update in a query is planned before any column is touched, so a bad
// update (e.g. arithmetic on text) aborts before mutating anything (spec
// §4.5.5).
type plannedUpdate struct {
	column  string
	kind    table.ColumnType
	op      ezql.UpdateOp
	intVal  int32
	fltVal  float32
	textVal keystring.KeyString
}

func execUpdate(pool Pool, q *ezql.Query, prevResult *table.EZTable) error {
	t, release, err := resolveWrite(pool, q)
	if err != nil {
		return err
	}
	defer release()

	idxs, err := KeysToIndexes(t, q.Keys)
	if err != nil {
		return err
	}
	idxs, err = FilterKeepers(t, idxs, q.Conditions)
	if err != nil {
		return err
	}

	updates := append([]ezql.Update(nil), q.Updates...)
	sort.Slice(updates, func(i, j int) bool { return updates[i].Attribute < updates[j].Attribute })

	planned := make([]plannedUpdate, 0, len(updates))
	for _, u := range updates {
		p, err := planUpdate(t, u)
		if err != nil {
			return err
		}
		planned = append(planned, p)
	}

	for _, p := range planned {
		applyUpdate(t, p, idxs)
	}
	pool.MarkDirty(t.Name)
	return nil
}

func planUpdate(t *table.EZTable, u ezql.Update) (plannedUpdate, error) {
	item, ok := t.Header.Find(u.Attribute)
	if !ok {
		return plannedUpdate{}, ezerr.Newf(ezerr.Query, "updates: no such column %q", u.Attribute)
	}

	switch item.Kind {
	case table.ColumnInt:
		switch u.Op {
		case ezql.OpAssign, ezql.OpPlusEquals, ezql.OpMinusEquals, ezql.OpTimesEquals:
		default:
			return plannedUpdate{}, ezerr.Newf(ezerr.Query, "updates: %s is not valid on integer column %q", u.Op, u.Attribute)
		}
		n, err := strconv.ParseInt(u.Value, 10, 32)
		if err != nil {
			return plannedUpdate{}, ezerr.Newf(ezerr.Query, "updates: malformed integer literal %q", u.Value)
		}
		return plannedUpdate{column: item.Name, kind: table.ColumnInt, op: u.Op, intVal: int32(n)}, nil

	case table.ColumnFloat:
		switch u.Op {
		case ezql.OpAssign, ezql.OpPlusEquals, ezql.OpMinusEquals, ezql.OpTimesEquals:
		default:
			return plannedUpdate{}, ezerr.Newf(ezerr.Query, "updates: %s is not valid on float column %q", u.Op, u.Attribute)
		}
		f, err := strconv.ParseFloat(u.Value, 32)
		if err != nil {
			return plannedUpdate{}, ezerr.Newf(ezerr.Query, "updates: malformed float literal %q", u.Value)
		}
		return plannedUpdate{column: item.Name, kind: table.ColumnFloat, op: u.Op, fltVal: float32(f)}, nil

	case table.ColumnText:
		switch u.Op {
		case ezql.OpAssign, ezql.OpAppend, ezql.OpPrepend:
		default:
			return plannedUpdate{}, ezerr.Newf(ezerr.Query, "updates: %s is not valid on text column %q", u.Op, u.Attribute)
		}
		ks, err := keystring.From(u.Value)
		if err != nil {
			return plannedUpdate{}, err
		}
		return plannedUpdate{column: item.Name, kind: table.ColumnText, op: u.Op, textVal: ks}, nil

	default:
		return plannedUpdate{}, ezerr.New(ezerr.Structure, "unknown column kind")
	}
}

func applyUpdate(t *table.EZTable, p plannedUpdate, idxs []int) {
	col := t.Columns[p.column]
	switch p.kind {
	case table.ColumnInt:
		for _, i := range idxs {
			switch p.op {
			case ezql.OpAssign:
				col.Ints[i] = p.intVal
			case ezql.OpPlusEquals:
				col.Ints[i] += p.intVal
			case ezql.OpMinusEquals:
				col.Ints[i] -= p.intVal
			case ezql.OpTimesEquals:
				col.Ints[i] *= p.intVal
			}
		}
	case table.ColumnFloat:
		for _, i := range idxs {
			switch p.op {
			case ezql.OpAssign:
				col.Floats[i] = p.fltVal
			case ezql.OpPlusEquals:
				col.Floats[i] += p.fltVal
			case ezql.OpMinusEquals:
				col.Floats[i] -= p.fltVal
			case ezql.OpTimesEquals:
				col.Floats[i] *= p.fltVal
			}
		}
	case table.ColumnText:
		for _, i := range idxs {
			switch p.op {
			case ezql.OpAssign:
				col.Texts[i] = p.textVal
			case ezql.OpAppend:
				ks, _ := keystring.From(col.Texts[i].String() + p.textVal.String())
				col.Texts[i] = ks
			case ezql.OpPrepend:
				ks, _ := keystring.From(p.textVal.String() + col.Texts[i].String())
				col.Texts[i] = ks
			}
		}
	}
}
