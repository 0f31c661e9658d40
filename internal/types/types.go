package types

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidElement = errors.New("invalid element")

// Kind is the tool that produced an element. Select and eraser are tool
// modes only and never appear in a stored collection.
type Kind string

const (
	KindSelect Kind = "select"
	KindPen    Kind = "pen"
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindArrow  Kind = "arrow"
	KindText   Kind = "text"
	KindSticky Kind = "sticky"
	KindEraser Kind = "eraser"
)

// Persistent reports whether elements of this kind may be stored in a room.
func (k Kind) Persistent() bool {
	switch k {
	case KindPen, KindRect, KindCircle, KindArrow, KindText, KindSticky:
		return true
	}
	return false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is one drawable unit on a board. Geometry is either Points (pen)
// or an anchor plus width/height; which optional fields are set depends on
// the kind.
type Element struct {
	Id          string   `json:"id"`
	Type        Kind     `json:"type"`
	Points      []Point  `json:"points,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Text        *string  `json:"text,omitempty"`
	Color       string   `json:"color"`
	StrokeWidth float64  `json:"strokeWidth"`
	Opacity     float64  `json:"opacity"`
}

func (e Element) Validate() error {
	if e.Id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidElement)
	}
	if !e.Type.Persistent() {
		return fmt.Errorf("%w: %q has non-persistent kind %q", ErrInvalidElement, e.Id, e.Type)
	}
	if e.StrokeWidth <= 0 {
		return fmt.Errorf("%w: %q has stroke width %v", ErrInvalidElement, e.Id, e.StrokeWidth)
	}
	if e.Opacity < 0 || e.Opacity > 1 {
		return fmt.Errorf("%w: %q has opacity %v", ErrInvalidElement, e.Id, e.Opacity)
	}
	if e.Type == KindPen && len(e.Points) == 0 {
		return fmt.Errorf("%w: stroke %q has no points", ErrInvalidElement, e.Id)
	}
	return nil
}

// Clone returns a deep copy so stored elements never share memory with a
// caller's slice.
func (e Element) Clone() Element {
	c := e
	if e.Points != nil {
		c.Points = make([]Point, len(e.Points))
		copy(c.Points, e.Points)
	}
	c.X = cloneFloat(e.X)
	c.Y = cloneFloat(e.Y)
	c.Width = cloneFloat(e.Width)
	c.Height = cloneFloat(e.Height)
	if e.Text != nil {
		t := *e.Text
		c.Text = &t
	}
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// ValidateElements checks every element and that ids are unique within the
// collection.
func ValidateElements(elements []Element) error {
	seen := make(map[string]struct{}, len(elements))
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, ok := seen[e.Id]; ok {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidElement, e.Id)
		}
		seen[e.Id] = struct{}{}
	}
	return nil
}

// CloneElements copies a collection, always returning a non-nil slice.
func CloneElements(elements []Element) []Element {
	out := make([]Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	return out
}

// ElementPatch is a shallow merge applied to a single element. Nil fields
// are left untouched.
type ElementPatch struct {
	X    *float64
	Y    *float64
	Text *string
}

func (p ElementPatch) Apply(e Element) Element {
	out := e.Clone()
	if p.X != nil {
		x := *p.X
		out.X = &x
	}
	if p.Y != nil {
		y := *p.Y
		out.Y = &y
	}
	if p.Text != nil {
		t := *p.Text
		out.Text = &t
	}
	return out
}

// Identity is the display identity a participant joins a room with.
type Identity struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Participant struct {
	ConnectionId string `json:"connection_id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	Cursor       Point  `json:"cursor"`
}

type SessionStatus string

const (
	SessionUpcoming SessionStatus = "upcoming"
	SessionLive     SessionStatus = "live"
	SessionFinished SessionStatus = "finished"
)

// ScheduledSession is a planned whiteboard meeting in a given room.
type ScheduledSession struct {
	Id          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartTime   time.Time     `json:"startTime"`
	Duration    int           `json:"duration"`
	RoomId      string        `json:"roomId"`
	Attendees   []string      `json:"attendees"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// StatusAt derives the session status from its time window.
func (s ScheduledSession) StatusAt(now time.Time) SessionStatus {
	end := s.StartTime.Add(time.Duration(s.Duration) * time.Minute)
	switch {
	case now.Before(s.StartTime):
		return SessionUpcoming
	case now.Before(end):
		return SessionLive
	default:
		return SessionFinished
	}
}
