// Package model contains domain models passed between layers.
package model

import "time"

// EventType enumerates the normalized event categories produced by the
// upstream entity-resolution pipeline.
type EventType string

const (
	EventJobPosting       EventType = "job_posting"
	EventBlogPost         EventType = "blog_post"
	EventNewsMention      EventType = "news_mention"
	EventTechFingerprint  EventType = "tech_fingerprint"
	EventFundingAnnounced EventType = "funding_announcement"
	EventComplianceNotice EventType = "compliance_notice"
)

// Well-known feature keys carried in Event.Features.
const (
	FeatureRole          = "role"
	FeatureRegion        = "region"
	FeatureTechnology    = "technology"
	FeatureRoundStage    = "round_stage"
	FeatureCategory      = "category"
	FeatureIndustry      = "industry"
	FeatureEmployeeCount = "employee_count"
)

// Event is a normalized, entity-resolved company event. It is immutable
// once produced upstream; the engine consumes it and keeps only the window
// deltas it contributes.
type Event struct {
	DeliveryID string            `json:"delivery_id"` // unique per delivery, idempotency key
	CompanyID  string            `json:"company_id"`
	Type       EventType         `json:"type"`
	TS         time.Time         `json:"ts"`
	Features   map[string]string `json:"features,omitempty"`
	SourceURL  string            `json:"source_url"`
	Title      string            `json:"title,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// Feature returns the named feature value, or "" when absent.
func (e *Event) Feature(key string) string {
	if e.Features == nil {
		return ""
	}
	return e.Features[key]
}

// snippetMaxLen bounds evidence snippets taken from event text.
const snippetMaxLen = 200

// Snippet derives the evidence snippet for this event: the title when
// present, otherwise the leading slice of the body text.
func (e *Event) Snippet() string {
	if e.Title != "" {
		return e.Title
	}
	if len(e.Text) > snippetMaxLen {
		return e.Text[:snippetMaxLen]
	}
	return e.Text
}
