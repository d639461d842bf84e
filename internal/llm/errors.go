package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/openai/openai-go"
)

// mapError translates SDK errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	if code := statusCode(err); code != 0 {
		return errs.Wrap(errs.ErrKindModelFailed, fmt.Sprintf("%s: HTTP %d", msg, code), err)
	}
	return errs.Wrap(errs.ErrKindModelFailed, msg, err)
}

// statusCode digs the HTTP status out of either SDK's error type.
func statusCode(err error) int {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return anErr.StatusCode
	}
	return 0
}

// retryable reports whether another attempt could succeed. Client errors
// such as a bad key or unknown model will fail the same way again.
func retryable(err error) bool {
	code := statusCode(err)
	switch {
	case code == 0:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400 && code < 500:
		return false
	default:
		return true
	}
}
