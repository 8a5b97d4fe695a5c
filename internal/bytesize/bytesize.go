// Package bytesize decodes human-readable byte sizes in configuration.
package bytesize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes that unmarshals from strings like "512Mi",
// "64KB" or a plain number. Binary suffixes (Ki, Mi, Gi, Ti, with or
// without a trailing B) multiply by 1024, decimal ones (K, M, G, T, KB...)
// by 1000.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = humanize.KByte
	MB ByteSize = humanize.MByte
	GB ByteSize = humanize.GByte

	KiB ByteSize = humanize.KiByte
	MiB ByteSize = humanize.MiByte
	GiB ByteSize = humanize.GiByte
)

// ParseByteSize parses s. Surrounding whitespace is ignored.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty byte size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalYAML writes the compact form when it parses back to the same
// value, and the plain number otherwise.
func (b ByteSize) MarshalYAML() (any, error) {
	s := b.String()
	if back, err := ParseByteSize(s); err == nil && back == b {
		return s, nil
	}
	return uint64(b), nil
}

// String renders b with an IEC suffix, e.g. "512 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

func (b ByteSize) Uint64() uint64 { return uint64(b) }
func (b ByteSize) Int64() int64   { return int64(b) }
