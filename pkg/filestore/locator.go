package filestore

import (
	"fmt"
	"strings"
)

const objectLocatorScheme = "s3://"

// ObjectLocator formats the locator used by object store backends.
func ObjectLocator(bucket, key string) string {
	return objectLocatorScheme + bucket + "/" + key
}

// ParseObjectLocator splits an s3://bucket/key locator. Both parts must be
// non-empty.
func ParseObjectLocator(locator string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(locator, objectLocatorScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q has no %s prefix", ErrInvalidLocator, locator, objectLocatorScheme)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q is not bucket/key", ErrInvalidLocator, locator)
	}
	return bucket, key, nil
}
