package http

import (
	"errors"
	"fmt"
)

// Validation decides whether a completed response is acceptable. A nil
// return accepts it. Returning an *ValidationError names the failing rule;
// any other error is wrapped in one.
type Validation func(req *Request, resp *Response) error

// runValidations applies rules in order and stops at the first rejection.
func runValidations(rules []Validation, req *Request, resp *Response) error {
	for i, rule := range rules {
		if rule == nil {
			continue
		}
		if err := rule(req, resp); err != nil {
			return asValidationError(err, i, resp)
		}
	}
	return nil
}

func asValidationError(err error, index int, resp *Response) *ValidationError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		if verr.StatusCode != 0 || resp == nil {
			return verr
		}
		c := *verr
		c.StatusCode = resp.StatusCode
		return &c
	}

	verr = &ValidationError{
		Rule: fmt.Sprintf("validation #%d", index+1),
		Err:  err,
	}
	if resp != nil {
		verr.StatusCode = resp.StatusCode
	}
	return verr
}
