package database

import (
	"github.com/stretchr/testify/mock"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSessionRepository) CreateSession(params CreateSessionParams) (Session, error) {
	args := m.Called(params)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockSessionRepository) ListSessions() ([]Session, error) {
	args := m.Called()
	if sessions, ok := args.Get(0).([]Session); ok {
		return sessions, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockSessionRepository) GetSession(id string) (Session, error) {
	args := m.Called(id)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockSessionRepository) DeleteSession(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
