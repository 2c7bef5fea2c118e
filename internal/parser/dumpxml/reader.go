// Package dumpxml reads Stack Exchange data-dump XML files as a stream of
// records.
//
// A dump file is a single root element (e.g. <sites>, <users>, <posts>)
// containing one self-closing <row .../> element per record, with every field
// encoded as an attribute. Rather than relying on the dump's one-element-per-
// line layout, this package drives encoding/xml's pull tokenizer over the
// byte stream, so pretty-printed or differently wrapped dumps parse the same
// way. Each record still parses independently of its siblings.
//
// The stream is consumed strictly forward, at most once; re-reading requires
// reopening the source.
package dumpxml

import (
	"encoding/xml"
	"fmt"
	"io"
)

// ParseError reports a malformed record or token in the source stream. It is
// fatal: the loader aborts the whole load when one surfaces.
type ParseError struct {
	Line int64 // 1-based input line of the failing token
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dumpxml: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RecordReader pulls record elements from one dump file. It is single-pass
// and not restartable. The zero value is not usable; call NewRecordReader.
type RecordReader struct {
	dec  *xml.Decoder
	root string
	done bool
}

// NewRecordReader wraps r. The reader owns no resources; closing the
// underlying file remains the caller's responsibility.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{dec: xml.NewDecoder(r)}
}

// Next returns the attributes of the next record element, io.EOF once the
// root element closes (or the input ends), or a *ParseError on malformed
// input. After a non-nil error the reader is exhausted and keeps returning
// the terminal condition.
func (rr *RecordReader) Next() (map[string]string, error) {
	if rr.done {
		return nil, io.EOF
	}
	for {
		tok, err := rr.dec.Token()
		if err == io.EOF {
			rr.done = true
			return nil, io.EOF
		}
		if err != nil {
			rr.done = true
			return nil, rr.parseErr(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rr.root == "" {
				// First element is the section root; descend into it.
				rr.root = t.Name.Local
				continue
			}
			attrs := make(map[string]string, len(t.Attr))
			for _, a := range t.Attr {
				attrs[a.Name.Local] = a.Value
			}
			// Consume through the element's end tag so nested content in
			// non-self-closing records cannot desynchronize the stream.
			if err := rr.dec.Skip(); err != nil {
				rr.done = true
				return nil, rr.parseErr(err)
			}
			return attrs, nil

		case xml.EndElement:
			if t.Name.Local == rr.root {
				// End of section: anything after the root tag is ignored.
				rr.done = true
				return nil, io.EOF
			}
		}
		// Character data, comments, directives and the XML declaration are
		// skipped.
	}
}

func (rr *RecordReader) parseErr(err error) *ParseError {
	line, _ := rr.dec.InputPos()
	return &ParseError{Line: int64(line), Err: err}
}
