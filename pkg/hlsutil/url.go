package hlsutil

import (
	"net/url"
	"strings"
)

// IsHLS reports whether source looks like an HLS manifest.
func IsHLS(source string) bool {
	source = strings.ToLower(source)
	return strings.Contains(source, ".m3u8") || strings.Contains(source, "m3u")
}

// IsAbsolute reports whether ref carries its own http(s) scheme.
func IsAbsolute(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference returns ref as an absolute URL, relative references are
// resolved against base.
func ResolveReference(base, ref string) (string, error) {
	if IsAbsolute(ref) {
		return ref, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(refURL).String(), nil
}

// MergeQuery copies query parameters of source onto target. On key collision
// the source values win.
func MergeQuery(target, source string) (string, error) {
	sourceURL, err := url.Parse(source)
	if err != nil {
		return "", err
	}

	params := sourceURL.Query()
	if len(params) == 0 {
		return target, nil
	}

	targetURL, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	mergeValues(targetURL, params)
	return targetURL.String(), nil
}

func mergeValues(u *url.URL, params url.Values) {
	query := u.Query()
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	u.RawQuery = query.Encode()
}
