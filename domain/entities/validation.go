package entities

import (
	"fmt"
	"strings"
	"time"
)

// OutcomeCode is the result of validating a badge scan
type OutcomeCode string

const (
	// OutcomeAccepted: employee found and badge active
	OutcomeAccepted OutcomeCode = "ACCEPTED"
	// OutcomeRefused: employee found but employee or badge deactivated
	OutcomeRefused OutcomeCode = "REFUSED"
	// OutcomeRejected: badge unknown
	OutcomeRejected OutcomeCode = "REJECTED"
)

// ValidationOutcome is what the terminal is told after a scan. It is never persisted.
type ValidationOutcome struct {
	Code           OutcomeCode
	Message        string
	EmployeeName   string
	AttendanceType AttendanceType
	Timestamp      time.Time
}

// CommandType is an administrative command a terminal understands
type CommandType string

const (
	CommandReset  CommandType = "reset"
	CommandReboot CommandType = "reboot"
	CommandSleep  CommandType = "sleep"
	CommandStatus CommandType = "status"
)

// ParseCommandType accepts the command name in any case
func ParseCommandType(s string) (CommandType, error) {
	c := CommandType(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CommandReset, CommandReboot, CommandSleep, CommandStatus:
		return c, nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// CommandEnvelope is an administrative command stamped at publish time
type CommandEnvelope struct {
	Command   CommandType
	Timestamp time.Time
}
