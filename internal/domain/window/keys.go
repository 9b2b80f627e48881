package window

import (
	"strings"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
)

// Feature key prefixes. Detectors read windows by these keys; Apply writes
// them, so both sides always agree on the window-kind definition.
const (
	hiringPrefix = "hiring:"
	techPrefix   = "tech:"
	textPrefix   = "mention:"
)

// roleClasses maps role keywords to a coarse role class so that, e.g.,
// "Senior Data Engineer" and "Staff Data Engineer" count into one window.
var roleClasses = []struct {
	keyword string
	class   string
}{
	{"data", "data"},
	{"machine learning", "data"},
	{"ml ", "data"},
	{"devops", "platform"},
	{"platform", "platform"},
	{"infrastructure", "platform"},
	{"security", "security"},
	{"sales", "sales"},
	{"account executive", "sales"},
	{"engineer", "engineering"},
	{"developer", "engineering"},
}

// RoleClass buckets a raw role string into a role class. Unmatched roles
// fall into "other".
func RoleClass(role string) string {
	r := strings.ToLower(role)
	for _, rc := range roleClasses {
		if strings.Contains(r, rc.keyword) {
			return rc.class
		}
	}
	return "other"
}

// HiringKey is the window key for a role class.
func HiringKey(roleClass string) string { return hiringPrefix + roleClass }

// TechKey is the window key for a technology fingerprint.
func TechKey(tech string) string { return techPrefix + strings.ToLower(tech) }

// MentionKey is the window key for textual technology mentions from blog
// posts and release notes.
func MentionKey(tech string) string { return textPrefix + strings.ToLower(tech) }

// Keys derives the window keys an event contributes to.
func Keys(ev *model.Event) []string {
	var keys []string
	switch ev.Type {
	case model.EventJobPosting:
		if role := ev.Feature(model.FeatureRole); role != "" {
			keys = append(keys, HiringKey(RoleClass(role)))
		}
	case model.EventTechFingerprint:
		if tech := ev.Feature(model.FeatureTechnology); tech != "" {
			keys = append(keys, TechKey(tech))
		}
	case model.EventBlogPost, model.EventNewsMention:
		if tech := ev.Feature(model.FeatureTechnology); tech != "" {
			keys = append(keys, MentionKey(tech))
		}
	case model.EventFundingAnnounced:
		keys = append(keys, "funding")
	case model.EventComplianceNotice:
		if cat := ev.Feature(model.FeatureCategory); cat != "" {
			keys = append(keys, "category:"+strings.ToLower(cat))
		}
	}
	return keys
}
