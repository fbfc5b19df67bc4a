package transfer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Recode rewrites the tab-delimited CSV produced by the source export into
// comma-delimited CSV for the target load. Only unquoted separators change:
// quoted fields are copied byte for byte with their quotes, so CR bytes and
// a quoted "\N" survive. Unquoted fields containing a comma get quoted.
// Every record must carry exactly fields values. It returns the number of
// records written.
func Recode(dst io.Writer, src io.Reader, fields int) (int64, error) {
	r := bufio.NewReader(src)
	w := bufio.NewWriter(dst)

	var (
		n        int64
		count    int          // fields finished in the current record
		pending  bytes.Buffer // unquoted field bytes
		quoted   bool         // current field opened with a quote
		inQuotes bool
		atStart  = true // no byte of the current field seen yet
		inRecord bool
	)

	endField := func() {
		if !quoted {
			raw := pending.Bytes()
			if bytes.ContainsAny(raw, ",\r\"") {
				w.WriteByte('"')
				w.Write(bytes.ReplaceAll(raw, []byte{'"'}, []byte{'"', '"'}))
				w.WriteByte('"')
			} else {
				w.Write(raw)
			}
		}
		pending.Reset()
		quoted = false
		atStart = true
		count++
	}

	endRecord := func() error {
		endField()
		if count != fields {
			return fmt.Errorf("read record %d: got %d fields, want %d", n+1, count, fields)
		}
		w.WriteByte('\n')
		n++
		count = 0
		inRecord = false
		return nil
	}

	for {
		c, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read record %d: %w", n+1, err)
		}
		inRecord = true

		if inQuotes {
			w.WriteByte(c)
			if c == '"' {
				next, err := r.Peek(1)
				if err == nil && next[0] == '"' {
					r.ReadByte()
					w.WriteByte('"')
				} else {
					inQuotes = false
				}
			}
			continue
		}

		switch {
		case c == '"' && atStart:
			quoted = true
			inQuotes = true
			atStart = false
			w.WriteByte(c)
		case c == '\t':
			endField()
			w.WriteByte(',')
		case c == '\n':
			if err := endRecord(); err != nil {
				return n, err
			}
		case quoted:
			return n, fmt.Errorf("read record %d: unexpected %q after closing quote", n+1, c)
		default:
			atStart = false
			pending.WriteByte(c)
		}
	}

	if inQuotes {
		return n, fmt.Errorf("read record %d: unterminated quoted field", n+1)
	}
	if inRecord {
		if err := endRecord(); err != nil {
			return n, err
		}
	}

	if err := w.Flush(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}
