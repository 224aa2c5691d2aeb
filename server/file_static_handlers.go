package server

import (
	"bytes"
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/pkg/errors"
)

//go:embed static/*
var staticFiles embed.FS

var staticFS = mustSub(staticFiles, "static")

// startedAt is the modification time reported for embedded assets.
var startedAt = time.Now()

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic("embedded " + dir + " missing: " + err.Error())
	}
	return sub
}

// StreamFile writes an embedded asset. Unknown or invalid names return fs.ErrNotExist.
func StreamFile(w http.ResponseWriter, r *http.Request, fileName string) error {
	if !fs.ValidPath(fileName) || path.Base(fileName) != fileName {
		return errors.Wrapf(fs.ErrNotExist, "[StreamFile] %q", fileName)
	}
	data, err := fs.ReadFile(staticFS, fileName)
	if err != nil {
		return errors.Wrapf(err, "[StreamFile] read %s", fileName)
	}

	if ctype := mime.TypeByExtension(path.Ext(fileName)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, fileName, startedAt, bytes.NewReader(data))
	return nil
}
