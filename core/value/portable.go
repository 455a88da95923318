// Package value defines the portable serialization used for every tool
// payload: timestamps become RFC 3339 strings, fixed-point decimals keep their
// exact decimal text and durations are rendered in whole seconds.
package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"
	"unicode/utf8"
)

// Decimal is fixed-point numeric text as reported by a database driver.
// It marshals as a JSON string so no precision is lost.
type Decimal string

// Portable converts v into a value that encoding/json serializes without
// loss or driver-specific shape. Maps and slices are converted recursively.
func Portable(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return Portable(*x)
	case time.Duration:
		return Seconds(x)
	case Decimal:
		return string(x)
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return base64.StdEncoding.EncodeToString(x)
	case *big.Int:
		return x.String()
	case *big.Float:
		return x.Text('f', -1)
	case *big.Rat:
		return x.FloatString(ratPrecision(x))
	case json.RawMessage:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Portable(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Portable(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Portable(e)
		}
		return out
	}
	return v
}

// Marshal encodes v through Portable.
func Marshal(v any) (json.RawMessage, error) {
	data, err := json.Marshal(Portable(v))
	if err != nil {
		return nil, fmt.Errorf("portable marshal: %w", err)
	}
	return data, nil
}

// Seconds renders a duration as "<n> seconds", truncating sub-second parts.
func Seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10) + " seconds"
}

// Date renders a calendar date without a time part. Callers decide from the
// column type, not the value, since a timestamp can fall on midnight.
func Date(t time.Time) string {
	return t.Format(time.DateOnly)
}

func ratPrecision(r *big.Rat) int {
	if r.IsInt() {
		return 0
	}
	return 10
}
