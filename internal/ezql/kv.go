package ezql

import (
	"bytes"

	"ezdb/internal/ezerr"
	"ezdb/internal/keystring"
)

// KVVerb is one of the four binary key-value operations (spec §4.5.10).
type KVVerb string

const (
	KVCreate KVVerb = "CREATE"
	KVRead   KVVerb = "READ"
	KVUpdate KVVerb = "UPDATE"
	KVDelete KVVerb = "DELETE"
)

// KVQuery is one decoded KV operation. Value is only meaningful for
// CREATE and UPDATE.
type KVQuery struct {
	Verb  KVVerb
	Key   string
	Value []byte
}

// EncodeKV writes one KV query in the spec §6.3 format:
// `tag(64) | key(64) | [u64 length + bytes]?`, the trailing length-prefixed
// payload present only for CREATE/UPDATE.
func EncodeKV(q *KVQuery) ([]byte, error) {
	tag, err := keystring.From(string(q.Verb))
	if err != nil {
		return nil, err
	}
	key, err := keystring.From(q.Key)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(tag.Raw())
	buf.Write(key.Raw())
	if q.Verb == KVCreate || q.Verb == KVUpdate {
		writeU64(&buf, uint64(len(q.Value)))
		buf.Write(q.Value)
	}
	return buf.Bytes(), nil
}

// EncodeKVBatch concatenates the encoding of every query, the payload
// shape for a KVQUERY-tagged wire frame (spec §6.1).
func EncodeKVBatch(queries []*KVQuery) ([]byte, error) {
	var out bytes.Buffer
	for _, q := range queries {
		b, err := EncodeKV(q)
		if err != nil {
			return nil, err
		}
		out.Write(b)
	}
	return out.Bytes(), nil
}

// ParseKVBinary decodes a concatenation of KV queries. Each record is
// self-delimiting (CREATE/UPDATE carry an explicit payload length; READ/
// DELETE do not), so no outer framing is required.
func ParseKVBinary(data []byte) ([]*KVQuery, error) {
	c := &cursor{buf: data}
	var out []*KVQuery
	for c.pos < len(c.buf) {
		tagB, err := c.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		keyB, err := c.fixed(keystring.Size)
		if err != nil {
			return nil, err
		}
		var tagKS, keyKS keystring.KeyString
		copy(tagKS[:], tagB)
		copy(keyKS[:], keyB)

		verb := KVVerb(tagKS.String())
		q := &KVQuery{Verb: verb, Key: keyKS.String()}

		switch verb {
		case KVCreate, KVUpdate:
			n, err := c.u64()
			if err != nil {
				return nil, err
			}
			val, err := c.fixed(int(n))
			if err != nil {
				return nil, err
			}
			q.Value = append([]byte(nil), val...)
		case KVRead, KVDelete:
			// no payload
		default:
			return nil, ezerr.Newf(ezerr.Deserialization, "unknown kv verb tag %q", tagKS.String())
		}
		out = append(out, q)
	}
	return out, nil
}
