package mocks

import (
	"context"
	"fmt"

	"github.com/hostsync/hostsync/pkg/types"
	"github.com/stretchr/testify/mock"
)

// Mock for manifest.Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context) (types.Manifest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	manifest, ok := args.Get(0).(types.Manifest)
	if !ok {
		return nil, fmt.Errorf("type assertion to types.Manifest failed")
	}
	return manifest, args.Error(1)
}

// Mock for release.Downloader.
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, release types.Release) ([]byte, error) {
	args := m.Called(ctx, release)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	data, ok := args.Get(0).([]byte)
	if !ok {
		return nil, fmt.Errorf("type assertion to []byte failed")
	}
	return data, args.Error(1)
}

// Mock for archive.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(src, dest string) error {
	args := m.Called(src, dest)
	return args.Error(0)
}
