package security

import (
	"strings"
	"time"

	"github.com/mssola/useragent"
)

type EventType string

const (
	EventLoginAttempt       EventType = "login_attempt"
	EventAPIAccess          EventType = "api_access"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventVulnerabilityScan  EventType = "vulnerability_scan"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Client is the parsed form of a request user agent.
type Client struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Details   string    `json:"details"`
	IP        string    `json:"ip"`
	UserID    string    `json:"user_id,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Client    *Client   `json:"client,omitempty"`
}

// ParseClient extracts browser and platform details from a user agent
// string. It returns nil for an empty or unknown agent.
func ParseClient(raw string) *Client {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "unknown" {
		return nil
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	return &Client{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}
