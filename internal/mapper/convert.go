package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
)

// TwitterTimeLayout is the created_at format of the v1.1 API,
// e.g. "Wed Oct 10 20:19:24 +0000 2018".
const TwitterTimeLayout = time.RubyDate

// ParseTime parses the timestamp formats seen in Twitter payloads. The API's
// own layout and RFC 3339 are tried first; dateparse covers everything else.
func ParseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(TwitterTimeLayout, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("mapper: parsing time %q: %w", s, err)
	}
	return ts, nil
}

// String converts a leaf to a string. nil becomes "".
func String(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot use %T as string", v)
	}
}

// Int64 converts a leaf to int64. nil becomes 0.
func Int64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot use %T as integer", v)
	}
}

// Bool converts a leaf to bool. nil becomes false.
func Bool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	default:
		return false, fmt.Errorf("cannot use %T as bool", v)
	}
}

// Time accepts an already parsed time.Time or a string in a known layout.
func Time(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return ParseTime(x)
	default:
		return time.Time{}, fmt.Errorf("cannot use %T as time", v)
	}
}
