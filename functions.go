package mutator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Functions is a registry of globally available free functions. These are
// the lowest-precedence targets: macros and Mutator methods of the same
// name win.
type Functions struct {
	table
}

// NewFunctions creates an empty function registry.
func NewFunctions() *Functions {
	return &Functions{table: newTable()}
}

// Builtins returns a new registry populated with the built-in string and
// number helpers. The result is independent of every other registry, so
// adding to it does not leak into other Mutators.
func Builtins() *Functions {
	f := NewFunctions()
	for name, op := range builtinOps() {
		f.Register(name, op)
	}
	return f
}

var builtins = Builtins()

// Register stores op under name, replacing any earlier registration.
func (f *Functions) Register(name Name, op Operation) {
	f.register(name, op)
}

// Lookup returns the function registered under name.
func (f *Functions) Lookup(name Name) (Operation, bool) {
	return f.lookup(name)
}

// Names returns the registered names in sorted order.
func (f *Functions) Names() []Name {
	return f.names()
}

// Len returns the number of registered functions.
func (f *Functions) Len() int {
	return f.len()
}

func builtinOps() map[Name]Operation {
	upper := Strings(func(s string, _ Args) (string, error) { return strings.ToUpper(s), nil })
	lower := Strings(func(s string, _ Args) (string, error) { return strings.ToLower(s), nil })
	title := Strings(func(s string, _ Args) (string, error) {
		return cases.Title(language.Und, cases.NoLower).String(s), nil
	})

	return map[Name]Operation{
		"strtoupper": upper,
		"uppercase":  upper,
		"upper":      upper,
		"strtolower": lower,
		"lowercase":  lower,
		"lower":      lower,
		"ucwords":    title,
		"title":      title,
		"ucfirst":    Strings(func(s string, _ Args) (string, error) { return mapFirstRune(s, unicode.ToUpper), nil }),
		"lcfirst":    Strings(func(s string, _ Args) (string, error) { return mapFirstRune(s, unicode.ToLower), nil }),
		"trim": Strings(func(s string, args Args) (string, error) {
			if args.Has(0) {
				return strings.Trim(s, args[0]), nil
			}
			return strings.TrimSpace(s), nil
		}),
		"ltrim": Strings(func(s string, args Args) (string, error) {
			if args.Has(0) {
				return strings.TrimLeft(s, args[0]), nil
			}
			return strings.TrimLeftFunc(s, unicode.IsSpace), nil
		}),
		"rtrim": Strings(func(s string, args Args) (string, error) {
			if args.Has(0) {
				return strings.TrimRight(s, args[0]), nil
			}
			return strings.TrimRightFunc(s, unicode.IsSpace), nil
		}),
		"substr":     Strings(substr),
		"str_repeat": Strings(repeat),
		"strrev": Strings(func(s string, _ Args) (string, error) {
			r := []rune(s)
			for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
				r[i], r[j] = r[j], r[i]
			}
			return string(r), nil
		}),
		"strlen": func(_ context.Context, value any, _ Args) (any, error) {
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, err
			}
			return utf8.RuneCountInString(s), nil
		},
		"str_pad": Strings(pad),
		"replace": Strings(func(s string, args Args) (string, error) {
			if !args.Has(0) || args[0] == "" {
				return "", fmt.Errorf("replace: missing search argument")
			}
			return strings.ReplaceAll(s, args[0], args.String(1, "")), nil
		}),
		"number_format": numberFormat,
		"intval": func(_ context.Context, value any, _ Args) (any, error) {
			return toInt(value)
		},
		"floatval": func(_ context.Context, value any, _ Args) (any, error) {
			return cast.ToFloat64E(value)
		},
		"strval": func(_ context.Context, value any, _ Args) (any, error) {
			return cast.ToStringE(value)
		},
		"boolval": func(_ context.Context, value any, _ Args) (any, error) {
			return cast.ToBoolE(value)
		},
		"abs":   absolute,
		"round": round,
		"ceil": func(_ context.Context, value any, _ Args) (any, error) {
			f, err := cast.ToFloat64E(value)
			if err != nil {
				return nil, err
			}
			return math.Ceil(f), nil
		},
		"floor": func(_ context.Context, value any, _ Args) (any, error) {
			f, err := cast.ToFloat64E(value)
			if err != nil {
				return nil, err
			}
			return math.Floor(f), nil
		},
		"json_encode": func(_ context.Context, value any, _ Args) (any, error) {
			b, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
		"json_decode": func(_ context.Context, value any, _ Args) (any, error) {
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, err
			}
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

func mapFirstRune(s string, fn func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(fn(r)) + s[size:]
}

// substr counts in runes. A negative start counts from the end, a negative
// length stops that many runes before the end.
func substr(s string, args Args) (string, error) {
	start, err := args.Int(0, 0)
	if err != nil {
		return "", err
	}
	r := []rune(s)
	n := len(r)

	if start < 0 {
		start = max(n+start, 0)
	}
	if start > n {
		return "", nil
	}

	end := n
	if args.Has(1) {
		length, err := args.Int(1, 0)
		if err != nil {
			return "", err
		}
		if length < 0 {
			end = n + length
		} else {
			end = min(start+length, n)
		}
	}
	if end <= start {
		return "", nil
	}
	return string(r[start:end]), nil
}

// Limits for built-ins whose output size or precision comes from stage
// arguments.
const (
	maxResultLen = 1 << 26
	maxDecimals  = 15
)

func repeat(s string, args Args) (string, error) {
	times, err := args.Int(0, 2)
	if err != nil {
		return "", err
	}
	if times < 0 {
		return "", fmt.Errorf("str_repeat: negative count %d", times)
	}
	if times > 0 && len(s) > maxResultLen/times {
		return "", fmt.Errorf("str_repeat: count %d too large", times)
	}
	return strings.Repeat(s, times), nil
}

func pad(s string, args Args) (string, error) {
	length, err := args.Int(0, 0)
	if err != nil {
		return "", err
	}
	padding := args.String(1, " ")
	if padding == "" {
		return "", fmt.Errorf("str_pad: padding must not be empty")
	}
	missing := length - utf8.RuneCountInString(s)
	if missing <= 0 {
		return s, nil
	}
	if length > maxResultLen {
		return "", fmt.Errorf("str_pad: length %d too large", length)
	}

	fill := func(n int) string {
		p := []rune(strings.Repeat(padding, n/utf8.RuneCountInString(padding)+1))
		return string(p[:n])
	}

	switch side := args.String(2, "right"); side {
	case "right":
		return s + fill(missing), nil
	case "left":
		return fill(missing) + s, nil
	case "both":
		left := missing / 2
		return fill(left) + s + fill(missing-left), nil
	default:
		return "", fmt.Errorf("str_pad: unknown side %q", side)
	}
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("intval: %q is not numeric", s)
		}
		return truncate(f)
	case float64:
		return truncate(v)
	case float32:
		return truncate(float64(v))
	}
	return cast.ToIntE(value)
}

// truncate converts f to int toward zero. float64(math.MinInt) is exact,
// so the bounds cover the whole int range.
func truncate(f float64) (int, error) {
	if math.IsNaN(f) || f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return 0, fmt.Errorf("intval: %v is out of integer range", f)
	}
	return int(f), nil
}

func absolute(_ context.Context, value any, _ Args) (any, error) {
	switch n := value.(type) {
	case int:
		if n == math.MinInt {
			return nil, fmt.Errorf("abs: %d overflows int", n)
		}
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case int64:
		if n == math.MinInt64 {
			return nil, fmt.Errorf("abs: %d overflows int64", n)
		}
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case int32:
		if n == math.MinInt32 {
			return nil, fmt.Errorf("abs: %d overflows int32", n)
		}
		if n < 0 {
			return -n, nil
		}
		return n, nil
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, err
	}
	return math.Abs(f), nil
}

func round(_ context.Context, value any, args Args) (any, error) {
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, err
	}
	precision, err := args.Int(0, 0)
	if err != nil {
		return nil, err
	}
	p := math.Pow(10, float64(precision))
	if math.IsInf(p, 0) || p == 0 {
		return nil, fmt.Errorf("round: precision %d out of range", precision)
	}
	scaled := f * p
	if math.IsInf(scaled, 0) {
		// No digits exist at this precision.
		return f, nil
	}
	return math.Round(scaled) / p, nil
}

func numberFormat(_ context.Context, value any, args Args) (any, error) {
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, err
	}
	decimals, err := args.Int(0, 0)
	if err != nil {
		return nil, err
	}
	if decimals < 0 {
		decimals = 0
	}
	if decimals > maxDecimals {
		return nil, fmt.Errorf("number_format: %d decimals exceeds %d", decimals, maxDecimals)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("number_format: %v is not a finite number", f)
	}
	point := args.String(1, ".")
	sep := args.String(2, ",")

	abs := math.Abs(f)
	if scaled := abs * math.Pow(10, float64(decimals)); !math.IsInf(scaled, 0) {
		abs = math.Round(scaled) / math.Pow(10, float64(decimals))
	}
	formatted := strconv.FormatFloat(abs, 'f', decimals, 64)
	whole, frac, _ := strings.Cut(formatted, ".")

	var b strings.Builder
	if f < 0 && strings.Trim(formatted, "0.") != "" {
		b.WriteByte('-')
	}
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(d)
	}
	if frac != "" {
		b.WriteString(point)
		b.WriteString(frac)
	}
	return b.String(), nil
}
