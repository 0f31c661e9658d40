package database

import "time"

type Session struct {
	Id          string
	Title       string
	Description string
	StartTime   time.Time
	Duration    int
	RoomId      string
	Attendees   []string
	CreatedAt   time.Time
}

type CreateSessionParams struct {
	Id          string
	Title       string
	Description string
	StartTime   time.Time
	Duration    int
	RoomId      string
	Attendees   []string
}
