package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
)

// FromCSVString parses the CSV format from spec §4.2.1 / §6.5:
//
//	name,typespec[;name,typespec...]\n
//	cell[;cell...]\n
//	...
//
// typespec is {i|int|f|float|t|text} optionally suffixed -p (primary),
// -f (foreign key), -n (none, the default). Exactly one -p column is
// required and it may not be float. Rows are stably sorted by the primary
// column after parsing; a duplicate primary key aborts with the key's
// position in that sorted order.
func FromCSVString(name string, csv string) (*EZTable, error) {
	lines := strings.Split(strings.ReplaceAll(csv, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, ezerr.New(ezerr.Structure, "csv: empty input")
	}

	header, err := parseCSVHeader(lines[0])
	if err != nil {
		return nil, err
	}

	t, err := New(name, header)
	if err != nil {
		return nil, err
	}

	for rowIdx, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ";")
		if len(cells) != len(header) {
			return nil, ezerr.Newf(ezerr.Structure, "csv: row %d has %d cells, expected %d", rowIdx, len(cells), len(header))
		}
		for i, item := range header {
			if err := appendCell(t.Columns[item.Name], cells[i]); err != nil {
				return nil, ezerr.Wrap(ezerr.Structure, fmt.Sprintf("csv: row %d column %q", rowIdx, item.Name), err)
			}
		}
	}

	if err := sortByPrimary(t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseCSVHeader(line string) (Header, error) {
	items := strings.Split(line, ";")
	header := make([]HeaderItem, 0, len(items))
	for _, raw := range items {
		raw = strings.TrimSpace(raw)
		parts := strings.SplitN(raw, ",", 2)
		if len(parts) != 2 {
			return nil, ezerr.Newf(ezerr.Structure, "csv: malformed header item %q", raw)
		}
		name := strings.TrimSpace(parts[0])
		typespec := strings.TrimSpace(parts[1])

		keyKind := KeyNone
		if dash := strings.LastIndex(typespec, "-"); dash >= 0 {
			switch strings.ToLower(typespec[dash+1:]) {
			case "p":
				keyKind = KeyPrimary
			case "f":
				keyKind = KeyForeign
			case "n":
				keyKind = KeyNone
			default:
				return nil, ezerr.Newf(ezerr.Structure, "csv: unknown key suffix in %q", typespec)
			}
			typespec = typespec[:dash]
		}

		kind, err := ParseColumnType(typespec)
		if err != nil {
			return nil, err
		}
		if keyKind == KeyPrimary && kind == ColumnFloat {
			return nil, ezerr.New(ezerr.Structure, "csv: float-p is rejected, float columns cannot be primary")
		}
		header = append(header, HeaderItem{Name: name, Kind: kind, Key: keyKind})
	}
	return NewHeader(header)
}

func appendCell(col *Column, cell string) error {
	switch col.Kind {
	case ColumnInt:
		n, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 32)
		if err != nil {
			return ezerr.Wrap(ezerr.Structure, "invalid int cell "+cell, err)
		}
		col.Ints = append(col.Ints, int32(n))
	case ColumnFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(cell), 32)
		if err != nil {
			return ezerr.Wrap(ezerr.Structure, "invalid float cell "+cell, err)
		}
		col.Floats = append(col.Floats, float32(f))
	case ColumnText:
		k, err := keystring.From(cell)
		if err != nil {
			return err
		}
		col.Texts = append(col.Texts, k)
	}
	return nil
}

func sortByPrimary(t *EZTable) error {
	pk := t.Header.Primary()
	n := t.RowCount()
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	pkCol := t.Columns[pk.Name]
	sort.SliceStable(idxs, func(i, j int) bool {
		a, _ := rowPK(pkCol, idxs[i])
		b, _ := rowPK(pkCol, idxs[j])
		return a.Compare(b) < 0
	})

	for _, item := range t.Header {
		src := t.Columns[item.Name]
		dst := NewColumn(item.Kind)
		dst.GatherFrom(src, idxs)
		t.Columns[item.Name] = dst
	}

	pkCol = t.Columns[pk.Name]
	for i := 0; i+1 < n; i++ {
		a, _ := rowPK(pkCol, i)
		b, _ := rowPK(pkCol, i+1)
		if a.Compare(b) == 0 {
			return ezerr.Newf(ezerr.Structure, "csv: duplicate primary key at sorted position %d", i)
		}
	}
	return nil
}

// ToCSVString is the inverse of FromCSVString: header in header-set order,
// followed by one semicolon-delimited row per line.
func (t *EZTable) ToCSVString() string {
	var sb strings.Builder
	for i, item := range t.Header {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(item.Name)
		sb.WriteByte(',')
		sb.WriteString(typespecString(item))
	}

	rows := t.RowCount()
	for r := 0; r < rows; r++ {
		sb.WriteByte('\n')
		for i, item := range t.Header {
			if i > 0 {
				sb.WriteByte(';')
			}
			sb.WriteString(cellString(t.Columns[item.Name], r))
		}
	}
	return sb.String()
}

func typespecString(item HeaderItem) string {
	base := item.Kind.String()[:1]
	switch item.Key {
	case KeyPrimary:
		return base + "-p"
	case KeyForeign:
		return base + "-f"
	default:
		return base
	}
}

func cellString(col *Column, row int) string {
	switch col.Kind {
	case ColumnInt:
		return strconv.FormatInt(int64(col.Ints[row]), 10)
	case ColumnFloat:
		return strconv.FormatFloat(float64(col.Floats[row]), 'g', -1, 32)
	case ColumnText:
		return col.Texts[row].String()
	default:
		return ""
	}
}
