// Package render fills named HTML fragments with `%KEY%` values.
//
// Pages are looked up as "<name>.html" in a file system. A tag is replaced
// only when values has a matching key; other tags are written back
// unchanged. "%%" produces a literal percent sign.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/valyala/fasttemplate"
)

const tag = "%"

// ErrNotFound is returned for a page with no template.
var ErrNotFound = errors.New("template not found")

// Renderer renders a named page with substitution values.
type Renderer interface {
	Render(page string, values map[string]string) ([]byte, error)
}

// FS renders pages stored in a file system. Files are read on every call so
// edits in a web directory show up without a restart.
type FS struct {
	fsys fs.FS
}

func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

func (r *FS) Render(page string, values map[string]string) ([]byte, error) {
	name := page + ".html"
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("render %q: %w", page, ErrNotFound)
	}
	raw, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("render %q: %w", page, ErrNotFound)
		}
		return nil, fmt.Errorf("render %q: %w", page, err)
	}
	return Execute(string(raw), values)
}

// Execute substitutes values into a template string.
func Execute(template string, values map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	_, err := fasttemplate.ExecuteFunc(template, tag, tag, &buf, func(w io.Writer, key string) (int, error) {
		if key == "" {
			return w.Write([]byte(tag))
		}
		if v, ok := values[key]; ok {
			return io.WriteString(w, v)
		}
		return io.WriteString(w, tag+key+tag)
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
