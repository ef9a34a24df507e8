package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// StatusRange is an inclusive range of acceptable status codes.
type StatusRange struct {
	Min int `json:"min" yaml:"min" validate:"min=100,max=599"`
	Max int `json:"max" yaml:"max" validate:"min=100,max=599,gtefield=Min"`
}

// Success is the 2xx range.
var Success = StatusRange{Min: 200, Max: 299}

func (r StatusRange) Contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

func (r StatusRange) String() string {
	if r.Min == r.Max {
		return strconv.Itoa(r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Rule returns a validation accepting only codes inside the range.
func (r StatusRange) Rule() http.Validation {
	return func(_ *http.Request, resp *http.Response) error {
		if r.Contains(resp.StatusCode) {
			return nil
		}
		return &http.ValidationError{
			Rule:       "status",
			Reason:     fmt.Sprintf("expected status in %s, got %d", r, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
}

// StatusCode is shorthand for StatusRange{min, max}.Rule().
func StatusCode(min, max int) http.Validation {
	return StatusRange{Min: min, Max: max}.Rule()
}

// ParseStatusRange parses "200", "200-299" or "2xx".
func ParseStatusRange(s string) (StatusRange, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	if len(s) == 3 && strings.HasSuffix(s, "xx") {
		class, err := strconv.Atoi(s[:1])
		if err != nil || class < 1 || class > 5 {
			return StatusRange{}, fmt.Errorf("invalid status class: %s", s)
		}
		return StatusRange{Min: class * 100, Max: class*100 + 99}, nil
	}

	lo, hi, found := strings.Cut(s, "-")
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return StatusRange{}, fmt.Errorf("invalid status range: %s", s)
	}
	max := min
	if found {
		max, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return StatusRange{}, fmt.Errorf("invalid status range: %s", s)
		}
	}

	r := StatusRange{Min: min, Max: max}
	if r.Min < 100 || r.Max > 599 || r.Min > r.Max {
		return StatusRange{}, fmt.Errorf("invalid status range: %s", s)
	}
	return r, nil
}
