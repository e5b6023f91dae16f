// Package xiuxian provides the embedded panel templates and an overlay
// filesystem that checks local disk first, falling back to embedded.
package xiuxian

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed templates/panels/*.txt
var rawPanels embed.FS

// Panels is the embedded panel templates filesystem with the
// "templates/panels/" prefix stripped.
var Panels = mustSub(rawPanels, "templates/panels")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// OverlayFS returns a filesystem that checks localDir on disk first,
// falling back to the embedded filesystem for files not found locally.
// An empty localDir uses the embedded filesystem only.
func OverlayFS(localDir string, embedded fs.FS) fs.FS {
	if localDir == "" {
		return embedded
	}
	return overlayFS{local: os.DirFS(localDir), embedded: embedded}
}

type overlayFS struct {
	local    fs.FS
	embedded fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	f, err := o.local.Open(name)
	if err == nil {
		return f, nil
	}
	return o.embedded.Open(name)
}
