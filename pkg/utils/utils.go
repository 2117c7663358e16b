package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of every date carried in form data and requests.
const DateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// jsonNumber matches both encoding/json.Number and goccy's json.Number.
type jsonNumber interface {
	String() string
	Float64() (float64, error)
	Int64() (int64, error)
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SplitEven divides total into n parts truncated to cents. The last part
// absorbs the residue so that the parts always sum to total exactly.
func SplitEven(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	parts := make([]decimal.Decimal, n)
	share := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = share
		allocated = allocated.Add(share)
	}
	parts[n-1] = total.Sub(allocated)
	return parts
}

// Percent converts a percentage (20 for 20%) into a ratio (0.20).
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// SumDecimals adds up all values.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// AddMonths adds months to t and clamps the day to the last day of the target
// month, so 31 January + 1 month is 28/29 February rather than early March.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// TruncateDay drops the clock part of t, keeping its location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsDateOverdue checks if dueDate is strictly before the day of now
func IsDateOverdue(dueDate, now time.Time) bool {
	return TruncateDay(dueDate).Before(TruncateDay(now))
}

// ParseDecimal accepts the shapes a number takes in free-form JSON form data:
// float64, json.Number, ints, and strings using either "." or "," as decimal
// separator with optional spaces as thousand separators ("200 000,50").
func ParseDecimal(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case jsonNumber:
		return decimal.NewFromString(n.String())
	case string:
		s := strings.TrimSpace(n)
		s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
		s = strings.Replace(s, ",", ".", 1)
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty number")
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported number type %T", v)
	}
}

// ParseInt parses an integral value; decimals with a fractional part are rejected.
func ParseInt(v interface{}) (int, error) {
	d, err := ParseDecimal(v)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%s is not a whole number", d.String())
	}
	return int(d.IntPart()), nil
}

// ParseBool accepts booleans, "true"/"false", "oui"/"non", "yes"/"no", "1"/"0" and numbers.
func ParseBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "oui", "yes", "1", "on":
			return true, nil
		case "false", "non", "no", "0", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", b)
	case float64, int, int64, jsonNumber:
		d, err := ParseDecimal(b)
		if err != nil {
			return false, err
		}
		return !d.IsZero(), nil
	default:
		return false, fmt.Errorf("unsupported boolean type %T", v)
	}
}

// ParseDate accepts time.Time, "2006-01-02" and RFC 3339 strings.
func ParseDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return TruncateDay(d.UTC()), nil
	case string:
		s := strings.TrimSpace(d)
		if t, err := time.Parse(DateLayout, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return TruncateDay(t.UTC()), nil
		}
		if t, err := time.Parse("02/01/2006", s); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("%q is not a date", d)
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}

// ParseString renders scalars as strings; nil becomes "".
func ParseString(v interface{}) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case jsonNumber:
		return s.String(), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", fmt.Errorf("unsupported text type %T", v)
	}
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
