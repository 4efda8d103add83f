package types

import "errors"

var (
	// ErrFetchFailed indicates the manifest could not be obtained for a cycle.
	ErrFetchFailed = errors.New("failed to obtain app manifest")

	// ErrDownloadFailed indicates the release asset was missing, empty or corrupt.
	ErrDownloadFailed = errors.New("failed to obtain the release")

	// ErrDigestMismatch indicates the downloaded release did not match its declared digest.
	ErrDigestMismatch = errors.New("release digest mismatch")

	// ErrNotInstalled indicates an application has no recorded version to start.
	ErrNotInstalled = errors.New("application is not installed")
)
