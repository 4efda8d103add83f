package mocks

import (
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/stretchr/testify/mock"
)

// Mock for supervisor.Supervisor.
type MockSupervisor struct {
	mock.Mock
}

func (m *MockSupervisor) Start(dist string, entry types.Entry, version string) error {
	args := m.Called(dist, entry, version)
	return args.Error(0)
}

func (m *MockSupervisor) Stop(dist, alias string) error {
	args := m.Called(dist, alias)
	return args.Error(0)
}
