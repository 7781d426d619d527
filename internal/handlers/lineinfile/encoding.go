package lineinfilehandler

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/alexisbeaulieu97/provision/internal/fsutil"
)

// lookupEncoding maps an encoding name to its codec. UTF-8 maps to nil,
// meaning bytes are used as is.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch name {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1", "ascii":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "utf-16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), nil
	}
	return nil, fmt.Errorf("unsupported encoding: %s", name)
}

func decode(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil || enc == nil {
		return string(data), err
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func encode(content, name string) ([]byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil || enc == nil {
		return []byte(content), err
	}
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, enc.NewEncoder())
	if _, err := w.Write([]byte(content)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// backup copies the pre-change bytes next to path, or into dir when set, as
// <name>.<UTC timestamp>.bak.
func backup(path, dir string, content []byte, perm os.FileMode) (string, error) {
	target := filepath.Dir(path)
	if dir != "" {
		expanded, err := fsutil.Expand(dir)
		if err != nil {
			return "", err
		}
		target = expanded
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(path), time.Now().UTC().Format("20060102T150405"))
	dest := filepath.Join(target, name)
	if err := os.WriteFile(dest, content, perm); err != nil {
		return "", err
	}
	return dest, nil
}
