package table

import (
	"bytes"
	"encoding/binary"
	"math"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
)

func float32bits(f float32) uint32      { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }

// EncodeBinary writes the self-describing binary format from spec §4.2.3.
// The table name is not part of the format — callers (the buffer pool,
// the persistence collaborator) key tables by name externally.
func (t *EZTable) EncodeBinary() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeU32(&buf, uint32(len(t.Header)))
	for _, item := range t.Header {
		name, err := keystring.From(item.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name.Raw())
		buf.WriteByte(byte(item.Kind))
		buf.WriteByte(byte(item.Key))
		if item.Key == KeyForeign {
			refTable, err := keystring.From(item.RefTable)
			if err != nil {
				return nil, err
			}
			refCol, err := keystring.From(item.RefColumn)
			if err != nil {
				return nil, err
			}
			buf.Write(refTable.Raw())
			buf.Write(refCol.Raw())
		}
	}

	rows := t.RowCount()
	writeU64(&buf, uint64(rows))

	for _, item := range t.Header {
		col := t.Columns[item.Name]
		switch col.Kind {
		case ColumnInt:
			for _, v := range col.Ints {
				writeU32(&buf, uint32(v))
			}
		case ColumnFloat:
			for _, v := range col.Floats {
				writeU32(&buf, float32bits(v))
			}
		case ColumnText:
			for _, v := range col.Texts {
				buf.Write(v.Raw())
			}
		}
	}
	return buf.Bytes(), nil
}

// DecodeBinary reads the format written by EncodeBinary. Any truncation or
// unknown tag byte is a Deserialization error (spec §4.2.3, §7).
func DecodeBinary(name string, data []byte) (*EZTable, error) {
	r := &cursor{buf: data}

	headerCount, err := r.u32()
	if err != nil {
		return nil, err
	}

	items := make([]HeaderItem, 0, headerCount)
	for i := uint32(0); i < headerCount; i++ {
		nameBytes, err := r.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		var nk keystring.KeyString
		copy(nk[:], nameBytes)

		kindByte, err := r.u8()
		if err != nil {
			return nil, err
		}
		kind, err := decodeColumnType(kindByte)
		if err != nil {
			return nil, err
		}

		keyByte, err := r.u8()
		if err != nil {
			return nil, err
		}
		var key KeyKind
		var refTable, refCol string
		switch keyByte {
		case 0:
			key = KeyNone
		case 1:
			key = KeyPrimary
		case 2:
			key = KeyForeign
			rt, err := r.fixed(keystring.Size)
			if err != nil {
				return nil, err
			}
			rc, err := r.fixed(keystring.Size)
			if err != nil {
				return nil, err
			}
			var rtk, rck keystring.KeyString
			copy(rtk[:], rt)
			copy(rck[:], rc)
			refTable, refCol = rtk.String(), rck.String()
		default:
			return nil, ezerr.Newf(ezerr.Deserialization, "unknown key tag %d", keyByte)
		}

		items = append(items, HeaderItem{Name: nk.String(), Kind: kind, Key: key, RefTable: refTable, RefColumn: refCol})
	}

	header, err := NewHeader(items)
	if err != nil {
		return nil, err
	}

	rowCount, err := r.u64()
	if err != nil {
		return nil, err
	}

	t, err := New(name, header)
	if err != nil {
		return nil, err
	}

	for _, item := range header {
		col := t.Columns[item.Name]
		switch col.Kind {
		case ColumnInt:
			col.Ints = make([]int32, rowCount)
			for i := uint64(0); i < rowCount; i++ {
				v, err := r.u32()
				if err != nil {
					return nil, err
				}
				col.Ints[i] = int32(v)
			}
		case ColumnFloat:
			col.Floats = make([]float32, rowCount)
			for i := uint64(0); i < rowCount; i++ {
				v, err := r.u32()
				if err != nil {
					return nil, err
				}
				col.Floats[i] = float32frombits(v)
			}
		case ColumnText:
			col.Texts = make([]keystring.KeyString, rowCount)
			for i := uint64(0); i < rowCount; i++ {
				b, err := r.fixed(keystring.Size)
				if err != nil {
					return nil, err
				}
				copy(col.Texts[i][:], b)
			}
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeColumnType(b byte) (ColumnType, error) {
	switch b {
	case 0:
		return ColumnInt, nil
	case 1:
		return ColumnFloat, nil
	case 2:
		return ColumnText, nil
	default:
		return 0, ezerr.Newf(ezerr.Deserialization, "unknown column kind tag %d", b)
	}
}

// cursor is a bounds-checked reader over a byte slice. Every read verifies
// enough bytes remain before touching them, per spec §5.3's requirement
// that truncated buffers fail with Deserialization rather than panic.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) need(n int) error {
	if c.pos+n > len(c.buf) {
		return ezerr.Newf(ezerr.Deserialization, "truncated buffer: need %d bytes at offset %d, have %d", n, c.pos, len(c.buf)-c.pos)
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

func (c *cursor) u32() (uint32, error) {
	b, err := c.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
