package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/tidwall/gjson"
)

// Named turns a predicate into a validation whose rejections carry name.
func Named(name string, check func(req *http.Request, resp *http.Response) error) http.Validation {
	return func(req *http.Request, resp *http.Response) error {
		err := check(req, resp)
		if err == nil {
			return nil
		}
		return &http.ValidationError{Rule: name, Err: err, StatusCode: resp.StatusCode}
	}
}

// ContentType accepts responses whose Content-Type contains any of types.
func ContentType(types ...string) http.Validation {
	return func(_ *http.Request, resp *http.Response) error {
		ct := strings.ToLower(resp.ContentType())
		for _, t := range types {
			if strings.Contains(ct, strings.ToLower(t)) {
				return nil
			}
		}
		return http.Reject("content-type", "expected one of %v, got %q", types, resp.ContentType())
	}
}

func BodyContains(substr string) http.Validation {
	return func(_ *http.Request, resp *http.Response) error {
		if strings.Contains(resp.BodyString(), substr) {
			return nil
		}
		return http.Reject("body", "expected body to contain %q", substr)
	}
}

// BodyMatches accepts bodies matching pattern. Surrounding slashes are
// stripped, so "/^ok$/" and "^ok$" are equivalent.
func BodyMatches(pattern string) (http.Validation, error) {
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %v", err)
	}

	return func(_ *http.Request, resp *http.Response) error {
		if re.Match(resp.Body) {
			return nil
		}
		return http.Reject("body", "expected body to match /%s/", pattern)
	}, nil
}

// MaxDuration rejects responses slower than d.
func MaxDuration(d time.Duration) http.Validation {
	return func(_ *http.Request, resp *http.Response) error {
		if resp.Duration <= d {
			return nil
		}
		return http.Reject("duration", "expected at most %s, took %s", d, resp.Duration)
	}
}

// JSONExists accepts JSON bodies where path resolves to a value.
func JSONExists(path string) http.Validation {
	gpath := convertBracketNotation(path)
	return func(_ *http.Request, resp *http.Response) error {
		if !gjson.ValidBytes(resp.Body) {
			return http.Reject("json "+path, "response body is not JSON")
		}
		if !gjson.GetBytes(resp.Body, gpath).Exists() {
			return http.Reject("json "+path, "expected %s to exist", path)
		}
		return nil
	}
}

// JSONField accepts JSON bodies where path equals expected. Numbers compare
// by value and scalars by their string form, so 1, 1.0 and "1" all match.
func JSONField(path string, expected any) http.Validation {
	gpath := convertBracketNotation(path)
	return func(_ *http.Request, resp *http.Response) error {
		if !gjson.ValidBytes(resp.Body) {
			return http.Reject("json "+path, "response body is not JSON")
		}
		result := gjson.GetBytes(resp.Body, gpath)
		if !result.Exists() {
			return http.Reject("json "+path, "expected %v, got nothing", expected)
		}
		if actual := result.Value(); !equals(actual, expected) {
			return http.Reject("json "+path, "expected %v, got %v", expected, actual)
		}
		return nil
	}
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	result = strings.TrimPrefix(result, ".")
	result = strings.TrimPrefix(result, "body.")
	return result
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

func equals(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk {
		return actualNum == expectedNum
	}

	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
