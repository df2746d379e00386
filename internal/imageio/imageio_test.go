package imageio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadText(t *testing.T) {
	pix, err := ReadText(strings.NewReader("10 20\t30\n\n 40 255\n"))
	require.NoError(t, err)
	require.Equal(t, []byte{10, 20, 30, 40, 255}, pix)

	_, err = ReadText(strings.NewReader("1 2\n3 256\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestWriteTextRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []byte{1, 2, 3, 4, 5, 6}, 3))
	require.Equal(t, "1 2 3\n4 5 6\n", buf.String())
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pix := []byte{0, 9, 99, 199, 255, 7}
	for _, name := range []string{"img.txt", "img.raw"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveFile(path, pix, 2))
		back, err := LoadFile(path)
		require.NoError(t, err)
		require.Equal(t, pix, back, name)
	}
}
