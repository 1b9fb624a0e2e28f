package objectstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juergengeck/one.projfs/pkg/model"
)

const testHash = "deadbeef0000000000000000000000000000000000000000000000000000beef"

var personHash = strings.Repeat("a", 64)
var clobHash = strings.Repeat("b", 64)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "objects", testHash), []byte("hello"), 0o644))
	return s
}

func TestListObjectsDirectory(t *testing.T) {
	s := newTestStore(t)
	entries, ok := s.ListDirectory("/objects", nil)
	require.True(t, ok)
	require.Len(t, entries, 1)
	require.Equal(t, testHash, entries[0].Name)
}

func TestListObjectSubfiles(t *testing.T) {
	s := newTestStore(t)
	entries, ok := s.ListDirectory("/objects/"+testHash, nil)
	require.True(t, ok)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	require.Equal(t, []string{"raw.txt", "pretty.html", "json.txt", "type.txt"}, names)
}

func TestReadRawAndType(t *testing.T) {
	s := newTestStore(t)
	raw, ok := s.ReadFile("/objects/"+testHash+"/raw.txt", nil)
	require.True(t, ok)
	require.Equal(t, "hello", string(raw))

	typ, ok := s.ReadFile("/objects/"+testHash+"/type.txt", nil)
	require.True(t, ok)
	require.Equal(t, "BLOB", string(typ))
}

func TestReadPrettyHTML(t *testing.T) {
	s := newTestStore(t)
	pretty, ok := s.ReadFile("/objects/"+testHash+"/pretty.html", nil)
	require.True(t, ok)
	require.Equal(t, "<html><body><pre>hello</pre></body></html>", string(pretty))
}

func TestUnknownHashIsAbsent(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.ListDirectory("/objects/not-a-hash", nil)
	require.False(t, ok)
}

func TestItemtypeMicrodataYieldsLiteralCapturedLabel(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	body := `<div itemtype="//refin.io/Person">Alice</div>`
	require.NoError(t, os.WriteFile(filepath.Join(root, "objects", personHash), []byte(body), 0o644))

	typ, ok := s.ReadFile("/objects/"+personHash+"/type.txt", nil)
	require.True(t, ok)
	require.Equal(t, "Person", string(typ))

	envelope, ok := s.ReadFile("/objects/"+personHash+"/json.txt", nil)
	require.True(t, ok)
	require.Equal(t, `{"hash":"`+personHash+`","type":"Person"}`, string(envelope))

	md := s.GetMetadata("/objects/"+personHash+"/raw.txt", nil)
	require.True(t, md.Exists)
	require.Equal(t, "Person", md.TypeLabel)
	require.Equal(t, model.ObjectTypeBlob, md.Type)
}

func TestNoItemtypeButDivFallsBackToCLOB(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "objects", clobHash), []byte("<div>plain text, no itemtype</div>"), 0o644))

	typ, ok := s.ReadFile("/objects/"+clobHash+"/type.txt", nil)
	require.True(t, ok)
	require.Equal(t, "CLOB", string(typ))

	md := s.GetMetadata("/objects/"+clobHash+"/raw.txt", nil)
	require.Equal(t, model.ObjectTypeClob, md.Type)
}

func TestMissingObjectFileIsAbsent(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	_, ok := s.ReadFile("/objects/"+testHash+"/raw.txt", nil)
	require.False(t, ok)
}
