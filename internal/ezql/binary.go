package ezql

import (
	"bytes"
	"encoding/binary"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
	"ezdb/internal/table"
)

// Encode writes q in the wire format from spec §4.4/§6.2:
//
//	[32 byte handle][64 byte verb][64 byte table name][variable payload]
//
// The handle's four little-endian u64 fields record, in order, the byte
// length of the keys+columns section, the conditions+update section, the
// join+statistic+insert section, and finally the total frame length used
// for batching. Each variable-size block additionally carries its own
// element count: the spec's "repeating Condition|Operator" and bare
// "concatenation of KeyStrings" shapes are not otherwise self-delimiting
// once more than one query is packed into a buffer.
func Encode(q *Query) ([]byte, error) {
	verb, err := keystring.From(string(q.Verb))
	if err != nil {
		return nil, err
	}
	tbl, err := keystring.From(q.Table)
	if err != nil {
		return nil, err
	}

	var keysCols bytes.Buffer
	if err := encodeKeyRange(&keysCols, q.Keys); err != nil {
		return nil, err
	}
	if err := encodeNameList(&keysCols, q.Columns); err != nil {
		return nil, err
	}

	var condUpd bytes.Buffer
	if err := encodeConditions(&condUpd, q.Conditions); err != nil {
		return nil, err
	}
	if err := encodeUpdates(&condUpd, q.Updates); err != nil {
		return nil, err
	}

	var joinStatInsert bytes.Buffer
	if err := encodeJoin(&joinStatInsert, q); err != nil {
		return nil, err
	}
	if err := encodeStatistics(&joinStatInsert, q.Statistics); err != nil {
		return nil, err
	}
	if err := encodeInsert(&joinStatInsert, q.InsertRows); err != nil {
		return nil, err
	}

	total := 32 + keystring.Size*2 + keysCols.Len() + condUpd.Len() + joinStatInsert.Len()

	var out bytes.Buffer
	writeU64(&out, uint64(keysCols.Len()))
	writeU64(&out, uint64(condUpd.Len()))
	writeU64(&out, uint64(joinStatInsert.Len()))
	writeU64(&out, uint64(total))
	out.Write(verb.Raw())
	out.Write(tbl.Raw())
	out.Write(keysCols.Bytes())
	out.Write(condUpd.Bytes())
	out.Write(joinStatInsert.Bytes())
	return out.Bytes(), nil
}

// EncodeBatch concatenates the binary encoding of every query, suitable
// for a single QUERY-tagged wire frame (spec §6.1).
func EncodeBatch(queries []*Query) ([]byte, error) {
	var out bytes.Buffer
	for _, q := range queries {
		b, err := Encode(q)
		if err != nil {
			return nil, err
		}
		out.Write(b)
	}
	return out.Bytes(), nil
}

// ParseBinary decodes one or more concatenated queries (spec
// `parse_queries_from_binary`), stopping only when the buffer is
// exhausted or malformed.
func ParseBinary(data []byte) ([]*Query, error) {
	c := &cursor{buf: data}
	var queries []*Query
	for c.pos < len(c.buf) {
		q, err := decodeOne(c)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func decodeOne(c *cursor) (*Query, error) {
	start := c.pos
	lenKeysCols, err := c.u64()
	if err != nil {
		return nil, err
	}
	lenCondUpd, err := c.u64()
	if err != nil {
		return nil, err
	}
	lenJoinStatInsert, err := c.u64()
	if err != nil {
		return nil, err
	}
	total, err := c.u64()
	if err != nil {
		return nil, err
	}

	verbBytes, err := c.fixed(keystring.Size)
	if err != nil {
		return nil, err
	}
	var verbKS keystring.KeyString
	copy(verbKS[:], verbBytes)

	tableBytes, err := c.fixed(keystring.Size)
	if err != nil {
		return nil, err
	}
	var tableKS keystring.KeyString
	copy(tableKS[:], tableBytes)

	q := &Query{Verb: Verb(verbKS.String()), Table: tableKS.String()}

	keysColsEnd := c.pos + int(lenKeysCols)
	if err := c.need(int(lenKeysCols)); err != nil {
		return nil, err
	}
	sub := &cursor{buf: c.buf[:keysColsEnd], pos: c.pos}
	keys, err := decodeKeyRange(sub)
	if err != nil {
		return nil, err
	}
	q.Keys = keys
	cols, err := decodeNameList(sub)
	if err != nil {
		return nil, err
	}
	q.Columns = cols
	if sub.pos != keysColsEnd {
		return nil, ezerr.New(ezerr.Deserialization, "keys/columns section length mismatch")
	}
	c.pos = keysColsEnd

	condUpdEnd := c.pos + int(lenCondUpd)
	if err := c.need(int(lenCondUpd)); err != nil {
		return nil, err
	}
	sub = &cursor{buf: c.buf[:condUpdEnd], pos: c.pos}
	conds, err := decodeConditions(sub)
	if err != nil {
		return nil, err
	}
	q.Conditions = conds
	updates, err := decodeUpdates(sub)
	if err != nil {
		return nil, err
	}
	q.Updates = updates
	if sub.pos != condUpdEnd {
		return nil, ezerr.New(ezerr.Deserialization, "conditions/update section length mismatch")
	}
	c.pos = condUpdEnd

	joinEnd := c.pos + int(lenJoinStatInsert)
	if err := c.need(int(lenJoinStatInsert)); err != nil {
		return nil, err
	}
	sub = &cursor{buf: c.buf[:joinEnd], pos: c.pos}
	if err := decodeJoin(sub, q); err != nil {
		return nil, err
	}
	stats, err := decodeStatistics(sub)
	if err != nil {
		return nil, err
	}
	q.Statistics = stats
	insertRows, err := decodeInsert(sub, q.Table)
	if err != nil {
		return nil, err
	}
	q.InsertRows = insertRows
	if sub.pos != joinEnd {
		return nil, ezerr.New(ezerr.Deserialization, "join/statistic/insert section length mismatch")
	}
	c.pos = joinEnd

	if c.pos-start != int(total) {
		return nil, ezerr.New(ezerr.Deserialization, "handle total length does not match decoded frame")
	}
	return q, nil
}

func encodeKeyRange(buf *bytes.Buffer, kr KeyRange) error {
	switch kr.Kind {
	case RangeAll:
		tag, err := keystring.From("ALL")
		if err != nil {
			return err
		}
		buf.Write(tag.Raw())
	case RangeSpan:
		tag, err := keystring.From("RANGE")
		if err != nil {
			return err
		}
		buf.Write(tag.Raw())
		from, err := keystring.From(kr.From)
		if err != nil {
			return err
		}
		to, err := keystring.From(kr.To)
		if err != nil {
			return err
		}
		buf.Write(from.Raw())
		buf.Write(to.Raw())
	case RangeList:
		tag, err := keystring.From("LIST")
		if err != nil {
			return err
		}
		buf.Write(tag.Raw())
		writeU64(buf, uint64(len(kr.List)))
		for _, v := range kr.List {
			ks, err := keystring.From(v)
			if err != nil {
				return err
			}
			buf.Write(ks.Raw())
		}
	default:
		return ezerr.New(ezerr.Structure, "unknown key range kind")
	}
	return nil
}

func decodeKeyRange(c *cursor) (KeyRange, error) {
	tagBytes, err := c.fixed(keystring.Size)
	if err != nil {
		return KeyRange{}, err
	}
	var tag keystring.KeyString
	copy(tag[:], tagBytes)
	switch tag.String() {
	case "ALL":
		return KeyRange{Kind: RangeAll}, nil
	case "RANGE":
		from, err := c.fixed(keystring.Size)
		if err != nil {
			return KeyRange{}, err
		}
		to, err := c.fixed(keystring.Size)
		if err != nil {
			return KeyRange{}, err
		}
		var f, t keystring.KeyString
		copy(f[:], from)
		copy(t[:], to)
		return KeyRange{Kind: RangeSpan, From: f.String(), To: t.String()}, nil
	case "LIST":
		n, err := c.u64()
		if err != nil {
			return KeyRange{}, err
		}
		list := make([]string, n)
		for i := range list {
			b, err := c.fixed(keystring.Size)
			if err != nil {
				return KeyRange{}, err
			}
			var ks keystring.KeyString
			copy(ks[:], b)
			list[i] = ks.String()
		}
		return KeyRange{Kind: RangeList, List: list}, nil
	default:
		return KeyRange{}, ezerr.Newf(ezerr.Deserialization, "unknown key range tag %q", tag.String())
	}
}

func encodeNameList(buf *bytes.Buffer, names []string) error {
	writeU64(buf, uint64(len(names)))
	for _, n := range names {
		ks, err := keystring.From(n)
		if err != nil {
			return err
		}
		buf.Write(ks.Raw())
	}
	return nil
}

func decodeNameList(c *cursor) ([]string, error) {
	n, err := c.u64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		b, err := c.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		var ks keystring.KeyString
		copy(ks[:], b)
		out[i] = ks.String()
	}
	return out, nil
}

// testOpCode / testOpFromCode give conditions a stable binary tag
// independent of the textual aliasing in reducer.go.
var testOpCode = map[TestOp]byte{
	TestEquals: 0, TestNotEquals: 1, TestLess: 2, TestGreater: 3,
	TestStarts: 4, TestEnds: 5, TestContains: 6,
}
var testOpFromCode = map[byte]TestOp{
	0: TestEquals, 1: TestNotEquals, 2: TestLess, 3: TestGreater,
	4: TestStarts, 5: TestEnds, 6: TestContains,
}

func encodeConditions(buf *bytes.Buffer, c Conditions) error {
	writeU64(buf, uint64(len(c.Conds)))
	for i, cond := range c.Conds {
		attr, err := keystring.From(cond.Attribute)
		if err != nil {
			return err
		}
		val, err := keystring.From(cond.Value)
		if err != nil {
			return err
		}
		code, ok := testOpCode[cond.Test]
		if !ok {
			return ezerr.Newf(ezerr.Structure, "unknown test op %q", cond.Test)
		}
		buf.Write(attr.Raw())
		buf.WriteByte(code)
		buf.Write(val.Raw())
		if i < len(c.Ops) {
			op := byte(0)
			if c.Ops[i] == LogicOr {
				op = 1
			}
			buf.WriteByte(op)
		}
	}
	return nil
}

func decodeConditions(c *cursor) (Conditions, error) {
	n, err := c.u64()
	if err != nil {
		return Conditions{}, err
	}
	var out Conditions
	for i := uint64(0); i < n; i++ {
		attrB, err := c.fixed(keystring.Size)
		if err != nil {
			return Conditions{}, err
		}
		codeB, err := c.u8()
		if err != nil {
			return Conditions{}, err
		}
		valB, err := c.fixed(keystring.Size)
		if err != nil {
			return Conditions{}, err
		}
		test, ok := testOpFromCode[codeB]
		if !ok {
			return Conditions{}, ezerr.Newf(ezerr.Deserialization, "unknown test op code %d", codeB)
		}
		var attr, val keystring.KeyString
		copy(attr[:], attrB)
		copy(val[:], valB)
		out.Conds = append(out.Conds, Cond{Attribute: attr.String(), Test: test, Value: val.String()})

		if i < n-1 {
			opB, err := c.u8()
			if err != nil {
				return Conditions{}, err
			}
			op := LogicAnd
			if opB == 1 {
				op = LogicOr
			}
			out.Ops = append(out.Ops, op)
		}
	}
	return out, nil
}

var updateOpCode = map[UpdateOp]byte{
	OpAssign: 0, OpPlusEquals: 1, OpMinusEquals: 2, OpTimesEquals: 3, OpAppend: 4, OpPrepend: 5,
}
var updateOpFromCode = map[byte]UpdateOp{
	0: OpAssign, 1: OpPlusEquals, 2: OpMinusEquals, 3: OpTimesEquals, 4: OpAppend, 5: OpPrepend,
}

func encodeUpdates(buf *bytes.Buffer, updates []Update) error {
	writeU64(buf, uint64(len(updates)))
	for _, u := range updates {
		attr, err := keystring.From(u.Attribute)
		if err != nil {
			return err
		}
		val, err := keystring.From(u.Value)
		if err != nil {
			return err
		}
		code, ok := updateOpCode[u.Op]
		if !ok {
			return ezerr.Newf(ezerr.Structure, "unknown update op %q", u.Op)
		}
		buf.Write(attr.Raw())
		buf.WriteByte(code)
		buf.Write(val.Raw())
	}
	return nil
}

func decodeUpdates(c *cursor) ([]Update, error) {
	n, err := c.u64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]Update, n)
	for i := range out {
		attrB, err := c.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		codeB, err := c.u8()
		if err != nil {
			return nil, err
		}
		valB, err := c.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		op, ok := updateOpFromCode[codeB]
		if !ok {
			return nil, ezerr.Newf(ezerr.Deserialization, "unknown update op code %d", codeB)
		}
		var attr, val keystring.KeyString
		copy(attr[:], attrB)
		copy(val[:], valB)
		out[i] = Update{Attribute: attr.String(), Op: op, Value: val.String()}
	}
	return out, nil
}

func encodeJoin(buf *bytes.Buffer, q *Query) error {
	for _, s := range []string{q.RightTable, q.JoinLeftCol, q.JoinRightCol} {
		ks, err := keystring.From(s)
		if err != nil {
			return err
		}
		buf.Write(ks.Raw())
	}
	return nil
}

func decodeJoin(c *cursor, q *Query) error {
	right, err := c.fixed(keystring.Size)
	if err != nil {
		return err
	}
	left, err := c.fixed(keystring.Size)
	if err != nil {
		return err
	}
	rightCol, err := c.fixed(keystring.Size)
	if err != nil {
		return err
	}
	var r, l, rc keystring.KeyString
	copy(r[:], right)
	copy(l[:], left)
	copy(rc[:], rightCol)
	q.RightTable, q.JoinLeftCol, q.JoinRightCol = r.String(), l.String(), rc.String()
	return nil
}

var statActionCode = map[StatAction]byte{
	StatSum: 0, StatMean: 1, StatMedian: 2, StatMode: 3, StatStdev: 4,
}
var statActionFromCode = map[byte]StatAction{
	0: StatSum, 1: StatMean, 2: StatMedian, 3: StatMode, 4: StatStdev,
}

func encodeStatistics(buf *bytes.Buffer, stats []Statistic) error {
	writeU64(buf, uint64(len(stats)))
	for _, s := range stats {
		col, err := keystring.From(s.Column)
		if err != nil {
			return err
		}
		buf.Write(col.Raw())
		actions := s.SortActions()
		if len(actions) > 255 {
			return ezerr.New(ezerr.Structure, "too many statistic actions")
		}
		buf.WriteByte(byte(len(actions)))
		for _, a := range actions {
			code, ok := statActionCode[a]
			if !ok {
				return ezerr.Newf(ezerr.Structure, "unknown statistic action %q", a)
			}
			buf.WriteByte(code)
		}
	}
	return nil
}

func decodeStatistics(c *cursor) ([]Statistic, error) {
	n, err := c.u64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]Statistic, n)
	for i := range out {
		colB, err := c.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		count, err := c.u8()
		if err != nil {
			return nil, err
		}
		actions := make([]StatAction, count)
		for j := range actions {
			code, err := c.u8()
			if err != nil {
				return nil, err
			}
			a, ok := statActionFromCode[code]
			if !ok {
				return nil, ezerr.Newf(ezerr.Deserialization, "unknown statistic action code %d", code)
			}
			actions[j] = a
		}
		var col keystring.KeyString
		copy(col[:], colB)
		out[i] = Statistic{Column: col.String(), Actions: actions}
	}
	return out, nil
}

func encodeInsert(buf *bytes.Buffer, rows *table.EZTable) error {
	if rows == nil {
		writeU64(buf, 0)
		return nil
	}
	data, err := rows.EncodeBinary()
	if err != nil {
		return err
	}
	writeU64(buf, uint64(len(data)))
	buf.Write(data)
	return nil
}

func decodeInsert(c *cursor, tableName string) (*table.EZTable, error) {
	n, err := c.u64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	data, err := c.fixed(int(n))
	if err != nil {
		return nil, err
	}
	return table.DecodeBinary(tableName, data)
}

// cursor is a bounds-checked reader, mirroring internal/table's decoder so
// a truncated buffer always reports Deserialization instead of panicking.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return ezerr.Newf(ezerr.Deserialization, "truncated query buffer: need %d bytes at offset %d", n, c.pos)
	}
	return nil
}

func (c *cursor) fixed(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) u8() (byte, error) {
	b, err := c.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
