package web

import "time"

// eventDTO is the JSON view of a model.Event.
type eventDTO struct {
	Date       string `json:"date"`
	Program    string `json:"program"`
	Location   string `json:"location"`
	Contact    string `json:"contact"`
	Comments   string `json:"comments"`
	Visibility string `json:"visibility"`
	Initials   string `json:"initials"`
}

type dayResponse struct {
	Date    string     `json:"date"`
	IndexID string     `json:"index_id"`
	Events  []eventDTO `json:"events"`
}

type monthResponse struct {
	Year    int        `json:"year"`
	Month   int        `json:"month"`
	IndexID string     `json:"index_id"`
	Events  []eventDTO `json:"events"`
}

type dayCountDTO struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Count   int    `json:"count"`
}

type monthDaysResponse struct {
	Year    int           `json:"year"`
	Month   int           `json:"month"`
	IndexID string        `json:"index_id"`
	Days    []dayCountDTO `json:"days"`
}

type statusResponse struct {
	IndexID     string     `json:"index_id"`
	BuiltAt     time.Time  `json:"built_at"`
	Events      int        `json:"events"`
	Visible     int        `json:"visible"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	FromCache   bool       `json:"from_cache"`
}
