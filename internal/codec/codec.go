// Package codec turns validation outcomes and administrative commands into the JSON
// payloads terminals understand. It only encodes; terminals never send these back.
package codec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

// Code is a fixed firmware code rendered as "0x" followed by six hex digits
type Code string

const (
	CodeAccepted Code = "0x001020"
	CodeRefused  Code = "0x003020"
	CodeRejected Code = "0x108080"
	CodeReset    Code = "0x108070"
	CodeReboot   Code = "0x108090"
	CodeSleep    Code = "0x1080B0"
	CodeStatus   Code = "0x100010"
)

var outcomeCodes = map[entities.OutcomeCode]Code{
	entities.OutcomeAccepted: CodeAccepted,
	entities.OutcomeRefused:  CodeRefused,
	entities.OutcomeRejected: CodeRejected,
}

var commandCodes = map[entities.CommandType]Code{
	entities.CommandReset:  CodeReset,
	entities.CommandReboot: CodeReboot,
	entities.CommandSleep:  CodeSleep,
	entities.CommandStatus: CodeStatus,
}

var rawCodePattern = regexp.MustCompile(`^0x[0-9A-Fa-f]{6}$`)

// OutcomeCode returns the wire code for a validation outcome
func OutcomeCode(o entities.OutcomeCode) (Code, bool) {
	c, ok := outcomeCodes[o]
	return c, ok
}

// CommandCode returns the wire code for an administrative command
func CommandCode(c entities.CommandType) (Code, bool) {
	code, ok := commandCodes[c]
	return code, ok
}

// ValidRawCode reports whether s looks like a firmware code
func ValidRawCode(s string) bool {
	return rawCodePattern.MatchString(s)
}

// ValidationResponse is published on {prefix}/{serial}/response
type ValidationResponse struct {
	Code           Code   `json:"code"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	EmployeeName   string `json:"employee_name,omitempty"`
	AttendanceType string `json:"attendance_type,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// CommandMessage is published on {prefix}/{serial}/command
type CommandMessage struct {
	Code      Code   `json:"code"`
	Command   string `json:"command,omitempty"`
	Timestamp string `json:"timestamp"`
}

func EncodeValidation(o entities.ValidationOutcome) ([]byte, error) {
	code, ok := OutcomeCode(o.Code)
	if !ok {
		return nil, fmt.Errorf("unknown outcome %q", o.Code)
	}
	return json.Marshal(ValidationResponse{
		Code:           code,
		Status:         string(o.Code),
		Message:        o.Message,
		EmployeeName:   o.EmployeeName,
		AttendanceType: string(o.AttendanceType),
		Timestamp:      formatTimestamp(o.Timestamp),
	})
}

func EncodeCommand(env entities.CommandEnvelope) ([]byte, error) {
	code, ok := CommandCode(env.Command)
	if !ok {
		return nil, fmt.Errorf("unknown command %q", env.Command)
	}
	return json.Marshal(CommandMessage{
		Code:      code,
		Command:   string(env.Command),
		Timestamp: formatTimestamp(env.Timestamp),
	})
}

// EncodeRawCode wraps an arbitrary firmware code in a command message without a command name
func EncodeRawCode(code string, at time.Time) ([]byte, error) {
	if !ValidRawCode(code) {
		return nil, fmt.Errorf("invalid code %q", code)
	}
	return json.Marshal(CommandMessage{
		Code:      Code(code),
		Timestamp: formatTimestamp(at),
	})
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format(time.RFC3339)
}
