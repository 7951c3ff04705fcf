package sql

import (
	"bytes"
	"encoding/binary"
)

// rowKey builds [tenant_bytes]['|']?[table_bytes]['|'][row_id: 8 bytes
// big-endian], per spec §3. The optional tenant prefix isolates rows
// without requiring a separate schema per tenant (spec §6).
func rowKey(tenant, table string, rowID uint64) []byte {
	var b bytes.Buffer
	if tenant != "" {
		b.WriteString(tenant)
		b.WriteByte('|')
	}
	b.WriteString(table)
	b.WriteByte('|')
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], rowID)
	b.Write(idBuf[:])
	return b.Bytes()
}

// counterKey is the reserved key the per-(tenant,table) row-id counter is
// persisted under, resolving the open question in spec §9 toward option
// (a): persist rather than lose the counter across restarts.
func counterKey(tenant, table string) []byte {
	var b bytes.Buffer
	b.WriteString("__rowid_counter__|")
	b.WriteString(tenant)
	b.WriteByte('|')
	b.WriteString(table)
	return b.Bytes()
}

func encodeCounter(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func decodeCounter(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
