// Artifact storage for generated keystore projects.
//
// One directory per sanitized project name holds the keystore, the
// exported certificate, the identity summary and the requester
// metadata. A project directory either holds a complete set or does
// not exist; before regeneration the old set is moved aside into a
// superseded root, never deleted.
//
// The package also provides an in-memory file system abstraction for
// testing.
package store

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing/fstest"
	"time"
)

const writePermissions fs.FileMode = 0644
const dirPermissions fs.FileMode = 0755

// Wrappers for fs.FS with the write functionality the store needs.
// All names are slash-separated paths relative to the filesystem root.
// ExternalPath translates such a name into one an external process
// (keytool) can open.
type Filesystem interface {
	FS() fs.FS
	WriteFile(name string, content []byte) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(name string) error
	Rename(oldname, newname string) error
	RemoveAll(name string) error
	ExternalPath(name string) string
}

type mapfs struct {
	fsobj fs.FS
	m     map[string]*fstest.MapFile
}

func (m mapfs) FS() fs.FS {
	return m.fsobj
}

func (m mapfs) Stat(name string) (os.FileInfo, error) {
	return fstest.MapFS(m.m).Stat(name)
}

func (m mapfs) WriteFile(name string, content []byte) error {
	m.m[name] = &fstest.MapFile{
		Data:    content,
		Mode:    writePermissions,
		ModTime: time.Now(),
	}
	return nil
}

func (m mapfs) MkdirAll(name string) error {
	m.m[name] = &fstest.MapFile{
		Mode:    dirPermissions | fs.ModeDir,
		ModTime: time.Now(),
	}
	return nil
}

func (m mapfs) Rename(oldname, newname string) error {
	if _, err := m.Stat(oldname); err != nil {
		return fmt.Errorf("store: can't rename '%s': %v", oldname, err)
	}

	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch {
		case k == oldname:
			m.m[newname] = m.m[k]
			delete(m.m, k)
		case strings.HasPrefix(k, oldname+"/"):
			m.m[newname+k[len(oldname):]] = m.m[k]
			delete(m.m, k)
		}
	}
	return nil
}

func (m mapfs) RemoveAll(name string) error {
	for k := range m.m {
		if k == name || strings.HasPrefix(k, name+"/") {
			delete(m.m, k)
		}
	}
	return nil
}

func (m mapfs) ExternalPath(name string) string {
	return name
}

// NewMapFs generates a new [store.Filesystem] based on [fstest.MapFS].
// It always adds a working directory ".".
func NewMapFs(m fstest.MapFS) Filesystem {
	switch m {
	case nil:
		f := fstest.MapFS{".": &fstest.MapFile{Mode: 0777 | fs.ModeDir}}
		return mapfs{m: f, fsobj: fstest.MapFS(f)}
	default:
		return mapfs{m, fstest.MapFS(m)}
	}
}

type nativefs struct {
	basepath string
	fsObj    fs.FS
}

func (n nativefs) FS() fs.FS {
	return n.fsObj
}

func (n nativefs) native(name string) string {
	return filepath.Join(n.basepath, filepath.FromSlash(name))
}

func (n nativefs) Stat(name string) (os.FileInfo, error) {
	return os.Stat(n.native(name))
}

func (n nativefs) WriteFile(name string, content []byte) error {
	if path.IsAbs(name) {
		return fmt.Errorf("store: '%s' is an absolute path, rather than a path relative to the provided basename", name)
	}
	return os.WriteFile(n.native(name), content, writePermissions)
}

func (n nativefs) MkdirAll(name string) error {
	return os.MkdirAll(n.native(name), dirPermissions.Perm())
}

func (n nativefs) Rename(oldname, newname string) error {
	return os.Rename(n.native(oldname), n.native(newname))
}

func (n nativefs) RemoveAll(name string) error {
	return os.RemoveAll(n.native(name))
}

func (n nativefs) ExternalPath(name string) string {
	return n.native(name)
}

// NewNativeFs generates a new [store.Filesystem] based on [os.DirFS],
// plus some write functionality taken from the [os] package.
func NewNativeFs(basepath string) Filesystem {
	return nativefs{basepath: basepath, fsObj: os.DirFS(basepath)}
}
