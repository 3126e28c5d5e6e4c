package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a config time span. In TOML it is written as a Go duration
// string ("3s", "1m30s") or a bare integer count of milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	var v time.Duration
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		v = time.Duration(ms) * time.Millisecond
	} else if v, err = time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q (want e.g. 3s, 2m or milliseconds)", s)
	}

	if v < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
