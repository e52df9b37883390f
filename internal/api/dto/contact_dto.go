package dto

import (
	"github.com/spec-kit/crm-basico/internal/domain"
)

// Envelope is the JSON shape of every /api response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ContactsPayload is the data of GET /api/contactos.
type ContactsPayload struct {
	Contacts []domain.Contact `json:"contactos"`
	Stats    domain.Stats     `json:"stats"`
}

// StatusResponse is the liveness body.
type StatusResponse struct {
	App       string `json:"app"`
	DB        string `json:"db"`
	Timestamp string `json:"timestamp"`
}

// HealthResponse is the readiness body.
type HealthResponse struct {
	Status       string         `json:"status"`
	Timestamp    string         `json:"timestamp"`
	Uptime       float64        `json:"uptime"`
	ResponseTime string         `json:"responseTime"`
	Environment  string         `json:"environment"`
	Database     DatabaseHealth `json:"database"`
	Cache        CacheHealth    `json:"cache"`
	Memory       MemoryHealth   `json:"memory"`
	Requests     RequestsHealth `json:"requests"`
}

// DatabaseHealth reports the store probe.
type DatabaseHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"responseTime,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CacheHealth reports the Redis probe.
type CacheHealth struct {
	Status string `json:"status"`
}

// MemoryHealth reports heap usage in megabytes.
type MemoryHealth struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
	Unit  string `json:"unit"`
}

// RequestsHealth reports request counters since start.
type RequestsHealth struct {
	Total  int64 `json:"total"`
	Errors int64 `json:"errors"`
}
