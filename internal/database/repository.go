package database

import "errors"

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Ping() error
	CreateSession(params CreateSessionParams) (Session, error)
	ListSessions() ([]Session, error)
	GetSession(id string) (Session, error)
	DeleteSession(id string) error
}
