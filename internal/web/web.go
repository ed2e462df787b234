// Package web holds the built-in page templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed files
var files embed.FS

// FS returns the default web root: page templates at the top level and
// static files under assets/.
func FS() fs.FS {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	return sub
}
