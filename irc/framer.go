package irc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrLineTooLong is returned by Feed when the unterminated remainder exceeds the configured cap.
var ErrLineTooLong = errors.New("irc: line exceeds buffer limit")

// Framer splits an unframed byte stream into protocol lines. It keeps only
// the trailing partial line between calls. A Framer is not safe for concurrent use.
type Framer struct {
	buf bytes.Buffer
	// Max bounds the bytes held without a terminator; zero means unbounded.
	Max int
}

// Feed appends data and returns every complete line it now holds, trimmed of
// surrounding whitespace. Lines that are empty after trimming are dropped.
func (f *Framer) Feed(data []byte) ([]string, error) {
	f.buf.Write(data)

	var lines []string
	for {
		i := bytes.IndexByte(f.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(f.buf.Next(i + 1)[:i]))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	if f.Max > 0 && f.buf.Len() > f.Max {
		n := f.buf.Len()
		f.buf.Reset()
		return lines, fmt.Errorf("%w: %d bytes buffered", ErrLineTooLong, n)
	}
	return lines, nil
}

// Buffered reports how many bytes of a partial line are held.
func (f *Framer) Buffered() int { return f.buf.Len() }

// Reset drops any partial line.
func (f *Framer) Reset() { f.buf.Reset() }
