package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteBundleEntry appends one (path, content) pair to w in the
// length-prefixed bundle format download_bulk responses use.
func WriteBundleEntry(w io.Writer, path string, content []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(path))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, path); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(content))); err != nil {
		return err
	}
	_, err := w.Write(content)
	return err
}

func readBundleEntry(r io.Reader) (string, []byte, error) {
	var pathLen uint32
	if err := binary.Read(r, binary.BigEndian, &pathLen); err != nil {
		return "", nil, err
	}
	pathBuf := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBuf); err != nil {
		return "", nil, fmt.Errorf("read bundle path: %w", err)
	}

	var contentLen uint64
	if err := binary.Read(r, binary.BigEndian, &contentLen); err != nil {
		return "", nil, err
	}
	content := make([]byte, contentLen)
	if _, err := io.ReadFull(r, content); err != nil {
		return "", nil, fmt.Errorf("read bundle content: %w", err)
	}
	return string(pathBuf), content, nil
}
