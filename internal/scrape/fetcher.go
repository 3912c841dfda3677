package scrape

import (
	"context"
	"errors"
	"fmt"
)

// Result is a successfully fetched page.
type Result struct {
	Body       string
	HTTPStatus int
}

// Failure is a classified fetch failure. Kind is one of the
// models.CheckError* values (network, timeout, captcha, rate_limit, parsing).
type Failure struct {
	Kind       string
	HTTPStatus *int
	Message    string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("fetch failed (%s): %s", f.Kind, f.Message)
}

// AsFailure unwraps err into a classified Failure, if it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (Result, error)
}
