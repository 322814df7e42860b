package journal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compress returns src as an lz4 frame.
func Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. sizeHint presizes the output buffer.
func Decompress(src []byte, sizeHint int) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	buf := bytes.NewBuffer(make([]byte, 0, max(sizeHint, 0)))
	if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(src))); err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return buf.Bytes(), nil
}
