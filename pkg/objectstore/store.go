// Package objectstore implements the synchronous, read-only reader of a
// content-addressed on-disk object store. It never blocks on the host and
// never propagates I/O errors across its boundary: failures are reported
// as absence.
package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/juergengeck/one.projfs/pkg/model"
)

var itemTypePattern = regexp.MustCompile(`itemtype="//refin\.io/([^"]*)"`)

const typeSniffBytes = 100

// Store is rooted at an on-disk directory holding objects/, vheads/, and
// rmaps/ subdirectories. Only objects/ is ever read by this engine; the
// other two are created for compatibility with store directories that
// predate this engine, and are otherwise untouched.
type Store struct {
	root string

	typeMu    sync.Mutex
	typeCache map[string]typeInfo
}

// typeInfo is the memoized result of sniffing one object's type: the
// literal label rendered into type.txt/json.txt, and the coarser enum
// used for directory/routing decisions.
type typeInfo struct {
	label string
	ot    model.ObjectType
}

// New creates the store's subdirectories if missing and returns a reader
// rooted at root.
func New(root string) (*Store, error) {
	for _, sub := range []string{"objects", "vheads", "rmaps"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("objectstore: create %s: %w", sub, err)
		}
	}
	return &Store{
		root:      root,
		typeCache: make(map[string]typeInfo),
	}, nil
}

func (s *Store) objectsDir() string {
	return filepath.Join(s.root, "objects")
}

// isHash reports whether name looks like a 64-hex-character object hash.
func isHash(name string) bool {
	if len(name) != 64 {
		return false
	}
	for _, c := range name {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

var objectSubfiles = []string{"raw.txt", "pretty.html", "json.txt", "type.txt"}

// splitObjectPath parses a virtual path rooted at /objects into a hash and
// an optional subfile name. ok is false if p is not under /objects at all.
func splitObjectPath(p string) (hash, subfile string, ok bool) {
	const prefix = "/objects"
	if p == prefix {
		return "", "", true
	}
	if !strings.HasPrefix(p, prefix+"/") {
		return "", "", false
	}
	rest := strings.TrimPrefix(p, prefix+"/")
	parts := strings.SplitN(rest, "/", 2)
	hash = parts[0]
	if len(parts) == 2 {
		subfile = parts[1]
	}
	return hash, subfile, true
}

// GetMetadata resolves a virtual path under /objects to its ObjectMetadata.
// Any I/O failure is reported as Exists=false; diagnostics are the
// caller's responsibility to surface on the debug channel.
func (s *Store) GetMetadata(p string, log func(string)) model.ObjectMetadata {
	hash, subfile, ok := splitObjectPath(p)
	if !ok {
		return model.ObjectMetadata{}
	}
	if hash == "" {
		// "/objects" itself.
		return model.ObjectMetadata{Exists: true, IsDirectory: true, Type: model.ObjectTypeDirectory}
	}
	if !isHash(hash) {
		return model.ObjectMetadata{}
	}
	if subfile == "" {
		// "/objects/<hash>" — synthetic directory of subfiles, present
		// iff the backing object exists.
		if !s.objectExists(hash) {
			return model.ObjectMetadata{}
		}
		return model.ObjectMetadata{Exists: true, IsDirectory: true, Type: model.ObjectTypeDirectory}
	}
	if !containsString(objectSubfiles, subfile) {
		return model.ObjectMetadata{}
	}
	data, err := s.readObject(hash)
	if err != nil {
		if log != nil {
			log(fmt.Sprintf("objectstore: read %s: %v", hash, err))
		}
		return model.ObjectMetadata{}
	}
	body := s.renderSubfile(hash, subfile, data)
	label, ot := s.detectType(hash, data)
	return model.ObjectMetadata{Exists: true, Size: uint64(len(body)), Type: ot, TypeLabel: label}
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Store) objectExists(hash string) bool {
	_, err := os.Stat(filepath.Join(s.objectsDir(), hash))
	return err == nil
}

func (s *Store) readObject(hash string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.objectsDir(), hash))
}

// detectType sniffs the first typeSniffBytes of data for an itemtype
// annotation, returning its captured text verbatim as the label (e.g.
// "Person", "Topic") with no further matching against it — only an
// absent itemtype falls back to the <div>/itemscope CLOB heuristic,
// else BLOB. The result is memoized per hash.
func (s *Store) detectType(hash string, data []byte) (label string, ot model.ObjectType) {
	s.typeMu.Lock()
	if t, ok := s.typeCache[hash]; ok {
		s.typeMu.Unlock()
		return t.label, t.ot
	}
	s.typeMu.Unlock()

	prefix := data
	if len(prefix) > typeSniffBytes {
		prefix = prefix[:typeSniffBytes]
	}
	var t typeInfo
	if m := itemTypePattern.FindSubmatch(prefix); m != nil {
		t.label = string(m[1])
		t.ot = objectTypeForLabel(t.label)
	} else if strings.Contains(string(prefix), "<div") || strings.Contains(string(prefix), "itemscope") {
		t.label = "CLOB"
		t.ot = model.ObjectTypeClob
	} else {
		t.label = "BLOB"
		t.ot = model.ObjectTypeBlob
	}

	s.typeMu.Lock()
	s.typeCache[hash] = t
	s.typeMu.Unlock()
	return t.label, t.ot
}

// objectTypeForLabel maps a captured itemtype label to the coarse enum
// used for directory/routing decisions. Only the label "CLOB" (in any
// letter case) maps to anything other than BLOB; any other microdata type (e.g.
// "Person", "Topic") is routed as BLOB, matching the original's default.
func objectTypeForLabel(label string) model.ObjectType {
	switch strings.ToUpper(label) {
	case "CLOB":
		return model.ObjectTypeClob
	default:
		return model.ObjectTypeBlob
	}
}

// ListDirectory lists a virtual directory under the /objects subtree:
// either the hash filenames under /objects, or the four synthetic
// subfiles for /objects/<hash>.
func (s *Store) ListDirectory(p string, log func(string)) ([]model.FileInfo, bool) {
	hash, subfile, ok := splitObjectPath(p)
	if !ok || subfile != "" {
		return nil, false
	}
	if hash == "" {
		entries, err := os.ReadDir(s.objectsDir())
		if err != nil {
			if log != nil {
				log(fmt.Sprintf("objectstore: list objects: %v", err))
			}
			return nil, false
		}
		var out []model.FileInfo
		for _, e := range entries {
			if e.IsDir() || !isHash(e.Name()) {
				continue
			}
			out = append(out, model.FileInfo{Name: e.Name(), IsDirectory: false, IsBlobOrClob: true})
		}
		return out, true
	}
	if !isHash(hash) || !s.objectExists(hash) {
		return nil, false
	}
	out := make([]model.FileInfo, 0, len(objectSubfiles))
	for _, name := range objectSubfiles {
		out = append(out, model.FileInfo{Name: name, IsDirectory: false, IsBlobOrClob: true})
	}
	return out, true
}

// ReadFile returns the rendered bytes for one of the four synthetic
// subfiles of /objects/<hash>/<subfile>, or ok=false if the path does not
// resolve to a readable object subfile.
func (s *Store) ReadFile(p string, log func(string)) (data []byte, ok bool) {
	hash, subfile, parsed := splitObjectPath(p)
	if !parsed || hash == "" || subfile == "" || !isHash(hash) {
		return nil, false
	}
	raw, err := s.readObject(hash)
	if err != nil {
		if log != nil {
			log(fmt.Sprintf("objectstore: read %s: %v", hash, err))
		}
		return nil, false
	}
	if !containsString(objectSubfiles, subfile) {
		return nil, false
	}
	return s.renderSubfile(hash, subfile, raw), true
}

func (s *Store) renderSubfile(hash, subfile string, raw []byte) []byte {
	switch subfile {
	case "raw.txt":
		return raw
	case "type.txt":
		label, _ := s.detectType(hash, raw)
		return []byte(label)
	case "pretty.html":
		var b strings.Builder
		b.WriteString("<html><body><pre>")
		b.Write(raw)
		b.WriteString("</pre></body></html>")
		return []byte(b.String())
	case "json.txt":
		label, _ := s.detectType(hash, raw)
		return []byte(fmt.Sprintf(`{"hash":"%s","type":"%s"}`, hash, label))
	default:
		return nil
	}
}
