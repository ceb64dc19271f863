package document

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/incidentlab/recall/internal/domain"
)

// buildHashFields converts a domain Document into a flat map[string]string for HSET.
// The vector is stored as little-endian float32 bytes, the layout FT.SEARCH expects.
func buildHashFields(doc *domain.Document) map[string]string {
	m := map[string]string{
		"issue_key":  doc.IssueKey,
		"snippet":    doc.Snippet,
		"__content":  doc.Content,
		"__vector":   vectorToBytes(doc.Vector),
		"indexed_at": strconv.FormatInt(doc.IndexedAt.UnixMilli(), 10),
	}
	if doc.Service != "" {
		m["service"] = doc.Service
	}
	return m
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
