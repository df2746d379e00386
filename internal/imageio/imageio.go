// Package imageio reads and writes single-channel pixel dumps: decimal
// values separated by whitespace, one image row per line on output.
package imageio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadText parses every whitespace-separated token of r as a byte.
func ReadText(r io.Reader) ([]byte, error) {
	var out []byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		for _, tok := range strings.Fields(sc.Text()) {
			v, err := strconv.ParseUint(tok, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("imageio: line %d: bad pixel %q", line, tok)
			}
			out = append(out, byte(v))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("imageio: %w", err)
	}
	return out, nil
}

// WriteText writes pix with width values per line.
func WriteText(w io.Writer, pix []byte, width int) error {
	if width <= 0 {
		width = len(pix)
	}
	bw := bufio.NewWriter(w)
	for i, v := range pix {
		if i > 0 {
			if i%width == 0 {
				bw.WriteByte('\n')
			} else {
				bw.WriteByte(' ')
			}
		}
		bw.WriteString(strconv.Itoa(int(v)))
	}
	if len(pix) > 0 {
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// LoadFile reads a text dump, or raw bytes when the name ends in .raw or .bin.
func LoadFile(path string) ([]byte, error) {
	if strings.HasSuffix(path, ".raw") || strings.HasSuffix(path, ".bin") {
		return os.ReadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadText(f)
}

// SaveFile writes pix in the format LoadFile expects for path.
func SaveFile(path string, pix []byte, width int) error {
	if strings.HasSuffix(path, ".raw") || strings.HasSuffix(path, ".bin") {
		return os.WriteFile(path, pix, 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteText(f, pix, width); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
