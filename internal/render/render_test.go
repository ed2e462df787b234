package render

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	cases := []struct {
		name   string
		tmpl   string
		values map[string]string
		want   string
	}{
		{"plain", "<p>hi</p>", nil, "<p>hi</p>"},
		{"single", "<title>%PAGETITLE%</title>", map[string]string{"PAGETITLE": "listen"}, "<title>listen</title>"},
		{"repeated", "%A%-%A%", map[string]string{"A": "x"}, "x-x"},
		{"unknown kept", "%A% %B%", map[string]string{"A": "1"}, "1 %B%"},
		{"literal percent", "width: 100%%;", nil, "width: 100%;"},
		{"empty value", "[%A%]", map[string]string{"A": ""}, "[]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Execute(tc.tmpl, tc.values)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestFS_Render(t *testing.T) {
	r := NewFS(fstest.MapFS{
		"listen.html": {Data: []byte("<div>%LISTEN_TXT%</div>")},
	})

	got, err := r.Render("listen", map[string]string{"LISTEN_TXT": "a<br/>"})
	require.NoError(t, err)
	assert.Equal(t, "<div>a<br/></div>", string(got))

	_, err = r.Render("listen.header", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Render("../etc/passwd", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
