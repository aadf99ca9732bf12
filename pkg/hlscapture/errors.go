package hlscapture

import "errors"

var (
	// manifest could not be retrieved (transport error or non-success status)
	ErrManifestFetch = errors.New("unable to fetch manifest")
	// manifest contains only comments and blank lines
	ErrNoSegmentFound = errors.New("no segment found in manifest")
	// media did not become seekable in time
	ErrLoadTimeout = errors.New("media load timeout")
	// media pipeline reported a fatal error
	ErrDecode = errors.New("unable to decode media")
	// decoded frame could not be serialized
	ErrEncode = errors.New("unable to encode frame")
)
