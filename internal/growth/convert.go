package growth

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// toInt converts a scanned driver value to int. Integral floats are accepted
// because some stores type every numeric column as REAL or DOUBLE.
func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		if x > math.MaxInt || x < math.MinInt {
			return 0, fmt.Errorf("integer overflow")
		}
		return int(x), nil
	case uint:
		return toInt(uint64(x))
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return toInt(int64(x))
	case uint64:
		if x > math.MaxInt {
			return 0, fmt.Errorf("integer overflow")
		}
		return int(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(x), nil
	case float32:
		return toInt(float64(x))
	case []byte:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	case nil:
		return 0, fmt.Errorf("null value")
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return toInt(f)
}

// toFloat converts a scanned driver value to float64.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, fmt.Errorf("not a number")
		}
		return x, nil
	case float32:
		return toFloat(float64(x))
	case uint64:
		return float64(x), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		n, err := toInt(x)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	case nil:
		return 0, fmt.Errorf("null value")
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return toFloat(f)
}
