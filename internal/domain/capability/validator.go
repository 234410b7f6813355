package capability

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"rpc-scanner/internal/pkg/apperrors"
)

// ValidatorKind is the closed set of checks a ProbeDefinition can apply to a result.
type ValidatorKind int

const (
	KindExactMatch ValidatorKind = iota
	KindNonEmpty
	KindPrefix
	KindNumericRange
	KindHasKeys
)

func (k ValidatorKind) String() string {
	switch k {
	case KindExactMatch:
		return "exact-match"
	case KindNonEmpty:
		return "non-empty"
	case KindPrefix:
		return "prefix"
	case KindNumericRange:
		return "numeric-range"
	case KindHasKeys:
		return "has-keys"
	default:
		return fmt.Sprintf("ValidatorKind(%d)", int(k))
	}
}

// RootPath addresses the whole RPC result.
const RootPath = "@this"

// Validator is one tagged check over a decoded RPC result.
// Path is a gjson path into the result. With Each set, the value at Path must be an
// array and the check applies to every element.
// For KindNumericRange an array or object is measured by its length.
type Validator struct {
	Kind    ValidatorKind
	Path    string
	Each    bool
	Expect  string
	Min     float64
	Max     float64
	Bounded bool
	Keys    []string
}

// Equals checks that the string at path equals expect, ignoring case and surrounding space.
func Equals(path, expect string) Validator {
	return Validator{Kind: KindExactMatch, Path: path, Expect: expect}
}

// NonEmpty checks that the value at path exists and is not null, empty, or zero-length.
func NonEmpty(path string) Validator {
	return Validator{Kind: KindNonEmpty, Path: path}
}

// HasPrefix checks that the string at path begins with prefix.
func HasPrefix(path, prefix string) Validator {
	return Validator{Kind: KindPrefix, Path: path, Expect: prefix}
}

// AtLeast checks that the number (or length) at path is >= min.
func AtLeast(path string, min float64) Validator {
	return Validator{Kind: KindNumericRange, Path: path, Min: min}
}

// Between checks that the number (or length) at path is within [min, max].
func Between(path string, min, max float64) Validator {
	return Validator{Kind: KindNumericRange, Path: path, Min: min, Max: max, Bounded: true}
}

// HasKeys checks that the object at path carries every key.
func HasKeys(path string, keys ...string) Validator {
	return Validator{Kind: KindHasKeys, Path: path, Keys: keys}
}

// ForEach returns a copy of v applied to every element of the array at its path.
func (v Validator) ForEach() Validator {
	v.Each = true
	return v
}

// evaluate is the single dispatcher for all validator kinds.
func evaluate(v Validator, raw []byte, bind func(string) string) error {
	res := gjson.GetBytes(raw, v.Path)
	if !res.Exists() {
		return fmt.Errorf("%w: %s: path %q not found", apperrors.ErrValidation, v.Kind, v.Path)
	}

	if !v.Each {
		return check(v, res, bind)
	}

	if !res.IsArray() {
		return fmt.Errorf("%w: %s: path %q is not an array", apperrors.ErrValidation, v.Kind, v.Path)
	}
	for i, elem := range res.Array() {
		if err := check(v, elem, bind); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func check(v Validator, res gjson.Result, bind func(string) string) error {
	switch v.Kind {
	case KindExactMatch:
		want := strings.TrimSpace(bind(v.Expect))
		got := strings.TrimSpace(res.String())
		if !strings.EqualFold(got, want) {
			return fmt.Errorf("%w: %q is %q, expected %q", apperrors.ErrValidation, v.Path, got, want)
		}

	case KindNonEmpty:
		if isEmpty(res) {
			return fmt.Errorf("%w: %q is empty", apperrors.ErrValidation, v.Path)
		}

	case KindPrefix:
		want := bind(v.Expect)
		if res.Type != gjson.String || !strings.HasPrefix(res.String(), want) {
			return fmt.Errorf("%w: %q value %q does not start with %q", apperrors.ErrValidation, v.Path, res.String(), want)
		}

	case KindNumericRange:
		n, ok := measure(res)
		if !ok {
			return fmt.Errorf("%w: %q is not numeric", apperrors.ErrValidation, v.Path)
		}
		if n < v.Min || (v.Bounded && n > v.Max) {
			if v.Bounded {
				return fmt.Errorf("%w: %q is %g, expected %g..%g", apperrors.ErrValidation, v.Path, n, v.Min, v.Max)
			}
			return fmt.Errorf("%w: %q is %g, expected at least %g", apperrors.ErrValidation, v.Path, n, v.Min)
		}

	case KindHasKeys:
		if !res.IsObject() {
			return fmt.Errorf("%w: %q is not an object", apperrors.ErrValidation, v.Path)
		}
		for _, key := range v.Keys {
			if !res.Get(gjsonEscape(key)).Exists() {
				return fmt.Errorf("%w: key %q not found in %q", apperrors.ErrValidation, key, v.Path)
			}
		}

	default:
		return fmt.Errorf("%w: unknown validator kind %d", apperrors.ErrInternal, int(v.Kind))
	}
	return nil
}

func isEmpty(res gjson.Result) bool {
	switch {
	case res.Type == gjson.Null:
		return true
	case res.IsArray():
		return len(res.Array()) == 0
	case res.IsObject():
		return len(res.Map()) == 0
	case res.Type == gjson.String:
		return res.String() == ""
	default:
		return false
	}
}

func measure(res gjson.Result) (float64, bool) {
	switch {
	case res.IsArray():
		return float64(len(res.Array())), true
	case res.IsObject():
		return float64(len(res.Map())), true
	case res.Type == gjson.Number:
		return res.Num, true
	default:
		return 0, false
	}
}

var gjsonSpecial = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func gjsonEscape(key string) string {
	return gjsonSpecial.Replace(key)
}
