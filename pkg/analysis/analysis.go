// Package analysis wraps an external text-analysis capability that reviews a
// configuration file and returns Markdown commentary.
package analysis

import (
	"context"
	"errors"

	"github.com/greg-hellings/servicedash/pkg/model"
)

// Failure kinds. Every error returned by a Client matches exactly one of the
// first three with errors.Is.
var (
	// ErrCapabilityUnavailable means no credential or provider is configured.
	ErrCapabilityUnavailable = errors.New("analysis capability unavailable")
	// ErrEmptyResult means the provider answered without usable text.
	ErrEmptyResult = errors.New("the model returned an empty response")
	// ErrTransportFailure wraps network and provider errors.
	ErrTransportFailure = errors.New("analysis request failed")
	// ErrEmptyContent is returned before any call when content is empty.
	ErrEmptyContent = errors.New("no content to analyze")
)

// Client analyzes configuration content.
type Client interface {
	Analyze(ctx context.Context, content string, fileType model.ConfigType) (string, error)
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, content string, fileType model.ConfigType) (string, error)

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, content string, fileType model.ConfigType) (string, error) {
	return f(ctx, content, fileType)
}

// Unavailable is the Client used when no provider is configured.
type Unavailable struct {
	Reason string
}

// Analyze always fails with ErrCapabilityUnavailable.
func (u Unavailable) Analyze(context.Context, string, model.ConfigType) (string, error) {
	if u.Reason == "" {
		return "", ErrCapabilityUnavailable
	}
	return "", &kindError{kind: ErrCapabilityUnavailable, msg: u.Reason}
}

// kindError carries a human-readable message while matching a sentinel.
type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.err }
