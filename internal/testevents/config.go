package testevents

import "time"

// Config holds configuration for the event test.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumCompanies int           // Number of synthetic companies
	SpanDays     int           // Days of history to synthesize per company
	Workers      int           // Number of concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	MinScore     int           // Score floor for the final signal query
	LogFile      string        // Log file for test output
	Verbose      bool          // Enable verbose logging
}

// Event mirrors the ingest wire schema.
type Event struct {
	DeliveryID string            `json:"delivery_id"`
	CompanyID  string            `json:"company_id"`
	Type       string            `json:"type"`
	TS         string            `json:"ts"`
	Features   map[string]string `json:"features,omitempty"`
	SourceURL  string            `json:"source_url"`
	Title      string            `json:"title,omitempty"`
}

// Signal mirrors the query wire schema, trimmed to what verification needs.
type Signal struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Kind      string `json:"kind"`
	Score     int    `json:"score"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds test statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	SignalsRetrieved int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
