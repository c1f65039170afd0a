package keyindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

func keyRecord(b byte, kind types.SourceKind) types.KeyRecord {
	var rec types.KeyRecord
	rec.DecryptedKey[0] = b
	rec.SourceKind = kind
	return rec
}

func TestIndex_AddBatch_GroupsByKeyID(t *testing.T) {
	idx := New()
	idx.AddBatch([]types.KeyRecord{keyRecord(1, types.SourceIRD)})
	idx.AddBatch([]types.KeyRecord{keyRecord(1, types.SourceRedump), keyRecord(2, types.SourceRedump)})

	ids := idx.KeyIDs()
	assert.Len(t, ids, 2, "two distinct key bytes => two groups")

	group := idx.Records(ids[0])
	assert.Len(t, group, 2, "same key byte from two providers groups together")
}

func TestIndex_KeyIDs_PreservesEnumerationOrder(t *testing.T) {
	idx := New()
	idx.AddBatch([]types.KeyRecord{keyRecord(9, types.SourceIRD), keyRecord(5, types.SourceIRD)})

	ids := idx.KeyIDs()
	require := assert.New(t)
	require.Len(ids, 2)
	require.Equal(keyRecord(9, types.SourceIRD).DecryptedKeyID(), ids[0])
	require.Equal(keyRecord(5, types.SourceIRD).DecryptedKeyID(), ids[1])
}

func TestIndex_KeyIDs_ReturnsCopy(t *testing.T) {
	idx := New()
	idx.AddBatch([]types.KeyRecord{keyRecord(1, types.SourceIRD)})
	ids := idx.KeyIDs()
	ids[0] = "mutated"

	assert.NotEqual(t, "mutated", idx.KeyIDs()[0])
}
