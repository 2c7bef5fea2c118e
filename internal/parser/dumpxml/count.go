package dumpxml

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// framingLines is the number of non-record lines in a standard dump file: the
// XML declaration, the opening root tag, and the closing root tag.
const framingLines = 3

// CountRecords estimates the number of record lines in the dump at path by
// counting newlines and subtracting the framing lines. The result is advisory
// and feeds progress display only; the authoritative record count is whatever
// the RecordReader actually yields.
func CountRecords(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("dumpxml: count records: %w", err)
	}
	defer f.Close()

	var (
		lines int64
		buf   = make([]byte, 64*1024)
	)
	for {
		n, err := f.Read(buf)
		lines += int64(bytes.Count(buf[:n], []byte{'\n'}))
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("dumpxml: count records: %w", err)
		}
	}

	records := lines - framingLines
	if records < 0 {
		records = 0
	}
	return records, nil
}
