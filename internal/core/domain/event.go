package domain

import "time"

type EventStatus string

const (
	EventStatusUpcoming EventStatus = "upcoming"
	EventStatusActive   EventStatus = "active"
	EventStatusClosed   EventStatus = "closed"
)

func ValidEventStatus(s EventStatus) bool {
	switch s {
	case EventStatusUpcoming, EventStatusActive, EventStatusClosed:
		return true
	}
	return false
}

// Event is a scheduled sales occasion. Inventory items, orders and order
// lines belong to exactly one event and are removed with it.
type Event struct {
	ID       int64
	Name     string
	Date     time.Time
	Location string
	Status   EventStatus
}
