package ir

import "encoding/binary"

// defKey identifies a structural node. Operands are packed by GID into a
// string so the key stays comparable.
type defKey struct {
	kind  Kind
	typ   GID
	flags uint64
	ops   string
}

func makeKey(kind Kind, typ *Def, ops []*Def, flags uint64) defKey {
	key := defKey{kind: kind, flags: flags}
	if typ != nil {
		key.typ = typ.gid
	}
	if len(ops) > 0 {
		buf := make([]byte, 0, 4*len(ops))
		for _, op := range ops {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(op.gid))
		}
		key.ops = string(buf)
	}
	return key
}
