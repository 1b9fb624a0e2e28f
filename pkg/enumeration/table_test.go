package enumeration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStartThenLookup(t *testing.T) {
	tbl := New()
	id := uuid.New()
	tbl.Start(id, nil)
	s, ok := tbl.Lookup(id)
	require.True(t, ok)
	require.False(t, s.IsComplete)
}

func TestStartOverwritesAndWarns(t *testing.T) {
	tbl := New()
	id := uuid.New()
	tbl.Start(id, nil)
	s, _ := tbl.Lookup(id)
	tbl.Lock()
	s.IsComplete = true
	tbl.Unlock()

	warned := false
	tbl.Start(id, func() { warned = true })

	require.True(t, warned)
	s, _ = tbl.Lookup(id)
	require.False(t, s.IsComplete)
}

func TestLookupOrCreateWarnsOnUnknown(t *testing.T) {
	tbl := New()
	id := uuid.New()
	warned := false
	s := tbl.LookupOrCreate(id, func() { warned = true })
	require.True(t, warned)
	require.NotNil(t, s)
}

func TestEndRemovesEntry(t *testing.T) {
	tbl := New()
	id := uuid.New()
	tbl.Start(id, nil)
	tbl.End(id)
	_, ok := tbl.Lookup(id)
	require.False(t, ok)
}
