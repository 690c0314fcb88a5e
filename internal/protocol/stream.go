package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

const readChunkSize = 4096

// Reader decodes frames from a byte stream. It is not safe for concurrent use.
type Reader struct {
	r   io.Reader
	buf []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Buffered returns the number of bytes read but not yet decoded.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// ReadFrame blocks until a whole frame is available. A *MalformedError means
// one frame was discarded and the stream is still usable; any other error is
// terminal.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		f, consumed, err := Decode(r.buf)
		switch {
		case err == nil:
			r.consume(consumed)
			return f, nil
		case errors.Is(err, ErrIncomplete):
		default:
			r.consume(consumed)
			return Frame{}, err
		}

		chunk := make([]byte, readChunkSize)
		n, readErr := r.r.Read(chunk)
		r.buf = append(r.buf, chunk[:n]...)
		if readErr != nil {
			if n > 0 {
				continue
			}
			if errors.Is(readErr, io.EOF) {
				if len(bytes.Trim(r.buf, "\r\n")) > 0 {
					return Frame{}, io.ErrUnexpectedEOF
				}
				return Frame{}, io.EOF
			}
			return Frame{}, readErr
		}
	}
}

func (r *Reader) consume(n int) {
	r.buf = r.buf[n:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
}

// Writer encodes frames onto a byte stream. Writes are serialized.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteFrame(f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", f.Method, err)
	}
	return nil
}
