package session

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// decodeBody replaces resp.Body with a decompressing reader when the server
// honoured our Accept-Encoding. The transport only does this by itself when
// it chose the header.
func decodeBody(resp *http.Response) error {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	var decoded io.ReadCloser
	switch encoding {
	case "", "identity":
		return nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to decode gzip body: %w", err)
		}
		decoded = zr
	case "deflate":
		br := bufio.NewReader(resp.Body)
		if isZlibHeader(br) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return fmt.Errorf("failed to decode deflate body: %w", err)
			}
			decoded = zr
		} else {
			// Some servers send a raw deflate stream without zlib wrapper.
			decoded = flate.NewReader(br)
		}
	default:
		return nil
	}

	resp.Body = &decodedBody{Reader: decoded, closers: []io.Closer{decoded, resp.Body}}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

func isZlibHeader(br *bufio.Reader) bool {
	b, err := br.Peek(2)
	if err != nil {
		return false
	}
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
