package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets. The numeric value is
// the code persisted in the tickets and ticket_logs tables.
type TicketStatus int

const (
	TicketStatusOpen       TicketStatus = 1
	TicketStatusInProgress TicketStatus = 2
	TicketStatusClosed     TicketStatus = 3
)

var ticketStatusNames = map[TicketStatus]string{
	TicketStatusOpen:       "OPEN",
	TicketStatusInProgress: "IN_PROGRESS",
	TicketStatusClosed:     "CLOSED",
}

// TicketStatusFromCode maps a persisted code back to a status.
func TicketStatusFromCode(code int) (TicketStatus, error) {
	status := TicketStatus(code)
	if _, ok := ticketStatusNames[status]; !ok {
		return 0, fmt.Errorf("unknown ticket status code %d", code)
	}
	return status, nil
}

// ParseTicketStatus accepts either a status name or its numeric code.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	raw = strings.TrimSpace(raw)
	if code, err := strconv.Atoi(raw); err == nil {
		return TicketStatusFromCode(code)
	}
	for status, name := range ticketStatusNames {
		if strings.EqualFold(name, raw) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown ticket status %q", raw)
}

// Code returns the persisted integer code.
func (s TicketStatus) Code() int { return int(s) }

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatusNames[s]
	return ok
}

func (s TicketStatus) String() string {
	if name, ok := ticketStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// TicketPriority enumerates urgency. Codes follow the dashboard ordering
// (HIGH first); Rank gives the LOW < MEDIUM < HIGH ordering.
type TicketPriority int

const (
	TicketPriorityHigh   TicketPriority = 1
	TicketPriorityMedium TicketPriority = 2
	TicketPriorityLow    TicketPriority = 3
)

var ticketPriorityNames = map[TicketPriority]string{
	TicketPriorityHigh:   "HIGH",
	TicketPriorityMedium: "MEDIUM",
	TicketPriorityLow:    "LOW",
}

// TicketPriorityFromCode maps a persisted code back to a priority.
func TicketPriorityFromCode(code int) (TicketPriority, error) {
	priority := TicketPriority(code)
	if _, ok := ticketPriorityNames[priority]; !ok {
		return 0, fmt.Errorf("unknown ticket priority code %d", code)
	}
	return priority, nil
}

// ParseTicketPriority accepts either a priority name or its numeric code.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	raw = strings.TrimSpace(raw)
	if code, err := strconv.Atoi(raw); err == nil {
		return TicketPriorityFromCode(code)
	}
	for priority, name := range ticketPriorityNames {
		if strings.EqualFold(name, raw) {
			return priority, nil
		}
	}
	return 0, fmt.Errorf("unknown ticket priority %q", raw)
}

// Code returns the persisted integer code.
func (p TicketPriority) Code() int { return int(p) }

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	_, ok := ticketPriorityNames[p]
	return ok
}

// Rank orders priorities from LOW (1) to HIGH (3).
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityHigh:
		return 3
	default:
		return 0
	}
}

func (p TicketPriority) String() string {
	if name, ok := ticketPriorityNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Name        string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	AssigneeID  *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketUpdate is a partial update: a nil field was not requested.
// A non-nil AssignedTo holding "" clears the assignee.
type TicketUpdate struct {
	Name        *string
	Description *string
	Status      *TicketStatus
	Priority    *TicketPriority
	AssignedTo  *string
}

// IsEmpty reports whether no field was requested.
func (u TicketUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil && u.Priority == nil && u.AssignedTo == nil
}

// Apply returns a copy of t with the requested fields replaced.
func (u TicketUpdate) Apply(t Ticket) Ticket {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssignedTo != nil {
		t.AssigneeID = NormalizeAssignee(u.AssignedTo)
	}
	return t
}

// NormalizeAssignee folds an absent or blank assignee into nil.
func NormalizeAssignee(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
