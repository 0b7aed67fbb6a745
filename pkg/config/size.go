package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a byte count written in config files as "4Mi", "16MB", "512KiB"
// or a plain number. Binary units (Ki, Mi, Gi) are powers of 1024 and decimal
// units (K, M, G) powers of 1000; a trailing "B" is optional.
type ByteSize int64

// Byte size units.
const (
	KiB ByteSize = 1 << 10
	MiB ByteSize = 1 << 20
	GiB ByteSize = 1 << 30

	KB ByteSize = 1e3
	MB ByteSize = 1e6
	GB ByteSize = 1e9
)

// units is ordered so longer suffixes are tried first.
var units = []struct {
	suffix string
	size   ByteSize
}{
	{"gi", GiB}, {"mi", MiB}, {"ki", KiB},
	{"g", GB}, {"m", MB}, {"k", KB},
}

// ParseByteSize parses a human-readable size.
func ParseByteSize(s string) (ByteSize, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	if text == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	text = strings.TrimSuffix(text, "b")

	mult := ByteSize(1)
	for _, u := range units {
		if rest, ok := strings.CutSuffix(text, u.suffix); ok {
			text, mult = strings.TrimSpace(rest), u.size
			break
		}
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n * float64(mult)), nil
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

// MarshalText writes the size in the largest binary unit that divides it
// exactly, so values round-trip through SaveConfig.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b ByteSize) String() string {
	for _, u := range units[:3] {
		if b >= u.size && b%u.size == 0 {
			return strconv.FormatInt(int64(b/u.size), 10) + strings.ToUpper(u.suffix[:1]) + "i"
		}
	}
	return strconv.FormatInt(int64(b), 10)
}
