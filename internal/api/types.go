package api

import "time"

// CommandRequest is the body of POST /api/v1/devices/:id/command
type CommandRequest struct {
	Command string `json:"command"`
}

// RawCommandRequest is the body of POST /api/v1/devices/:id/raw-command
type RawCommandRequest struct {
	Code string `json:"code"`
}

// BulkCommandRequest is the body of POST /api/v1/devices/bulk-command
type BulkCommandRequest struct {
	DeviceIDs []string `json:"device_ids"`
	Command   string   `json:"command"`
}

// StatusCheckResponse reports a manual liveness sweep
type StatusCheckResponse struct {
	Success       bool      `json:"success"`
	MarkedOffline int       `json:"marked_offline"`
	CheckedAt     time.Time `json:"checked_at"`
}

// HealthResponse represents the health endpoint payload
type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	MQTTConnected bool   `json:"mqtt_connected"`
	Subscribers   int    `json:"realtime_subscribers"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
