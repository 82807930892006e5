package entities

import "strings"

// Employee is the part of an employee record the terminal gateway reads
type Employee struct {
	ID             string `json:"id" bson:"_id"`
	OrganizationID string `json:"organization_id" bson:"organization_id"`
	FirstName      string `json:"first_name" bson:"first_name"`
	LastName       string `json:"last_name" bson:"last_name"`
	BadgeID        string `json:"badge_id" bson:"badge_id"`
	IsActive       bool   `json:"is_active" bson:"is_active"`
	BadgeActive    bool   `json:"badge_active" bson:"badge_active"`
}

// DisplayName returns "First Last"
func (e *Employee) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// CanClockIn is false when either the employee or the badge has been deactivated.
func (e *Employee) CanClockIn() bool {
	return e.IsActive && e.BadgeActive
}
