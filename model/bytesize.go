package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a file size in bytes. The database column is a plain 64-bit
// integer but the wire format is a decimal string, since file sizes can
// exceed what a JSON number survives in every client (2^53). Parsing happens
// here and nowhere else.
type ByteSize int64

func (b ByteSize) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(b), 10))), nil
}

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*b = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid byte size %q, %w", s, err)
	}
	if n < 0 {
		return fmt.Errorf("byte size can't be negative, got %d", n)
	}

	*b = ByteSize(n)
	return nil
}
