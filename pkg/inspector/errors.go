package inspector

import "errors"

var (
	// ErrInvalidSelection is returned for out-of-range file indices and
	// unknown tabs. Callers only pass indices taken from the file list, so
	// this indicates a bug in the caller.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrContentNotReady is returned by actions that need loaded content.
	ErrContentNotReady = errors.New("config content not loaded yet")
	// ErrSessionClosed is returned by actions on a closed session.
	ErrSessionClosed = errors.New("inspector session closed")
	// ErrNoURL is returned by OpenService for services without a URL.
	ErrNoURL = errors.New("service has no URL")
	// ErrClipboardUnavailable is returned by Copy when no clipboard is set.
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
)
