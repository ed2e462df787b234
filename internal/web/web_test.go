package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_HasEveryPage(t *testing.T) {
	pages := []string{
		"header", "footer", "bodystart-generic", "bodystart-mote",
		"default", "motes", "listen", "graphs", "upload",
		"upload-done", "upload-error", "404",
	}
	for _, p := range pages {
		_, err := fs.Stat(FS(), p+".html")
		assert.NoError(t, err, p)
	}
	_, err := fs.Stat(FS(), "assets/style.css")
	require.NoError(t, err)
}
