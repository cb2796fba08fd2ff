package criteria

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fiam/gounidecode/unidecode"
	"golang.org/x/text/cases"

	"hotel_search/internal/domain"
)

var folder = cases.Fold()

// Int accepts JSON numbers with no fractional part and numeric strings.
func Int() Converter {
	return func(v any) (any, error) {
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			if x < -(1<<63) || x >= 1<<63 {
				return nil, fmt.Errorf("%v is out of range", x)
			}
			return int64(x), nil
		case json.Number:
			n, err := strconv.ParseInt(x.String(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s is not an integer", x)
			}
			return n, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", x)
			}
			return n, nil
		}
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func Number() Converter {
	return func(v any) (any, error) {
		switch x := v.(type) {
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%v is not a finite number", x)
			}
			return x, nil
		case json.Number:
			return x.Float64()
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			return f, nil
		}
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func Text() Converter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", v)
		}
		return strings.TrimSpace(s), nil
	}
}

// Date parses calendar days in domain.DateLayout.
func Date() Converter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected date string, got %T", v)
		}
		t, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%q is not a %s date", s, domain.DateLayout)
		}
		return t, nil
	}
}

// SearchKey produces the lower-case ASCII form stored in listings.search_name.
func SearchKey() Converter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", v)
		}
		return NormalizeName(s), nil
	}
}

// NormalizeName is shared with the writer of listings.search_name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

func ListingStatusValue() Converter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected status name, got %T", v)
		}
		st, err := domain.ParseListingStatus(s)
		if err != nil {
			return nil, err
		}
		return int64(st), nil
	}
}

func ListingTypeValue() Converter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected type name, got %T", v)
		}
		lt, err := domain.ParseListingType(s)
		if err != nil {
			return nil, err
		}
		return int64(lt), nil
	}
}

// Enum maps a case-insensitive option name to its stored code.
func Enum(options map[string]string) Converter {
	folded := make(map[string]string, len(options))
	for name, code := range options {
		folded[folder.String(strings.TrimSpace(name))] = code
	}
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected option name, got %T", v)
		}
		code, ok := folded[folder.String(strings.TrimSpace(s))]
		if !ok {
			return nil, fmt.Errorf("unknown option %q", s)
		}
		return code, nil
	}
}
