package application

import (
	"context"
	"regexp"
	"strings"

	"github.com/clearpay/portal/internal/domain"
)

// signatureFamily pairs a compiled attack signature with its classification.
type signatureFamily struct {
	eventType string
	severity  domain.EventSeverity
	pattern   *regexp.Regexp
}

var signatureFamilies = []signatureFamily{
	{
		eventType: domain.EventSQLInjection,
		severity:  domain.SeverityHigh,
		pattern: regexp.MustCompile(`(?i)(union[\s+]+(all[\s+]+)?select|insert[\s+]+into|drop[\s+]+table|delete[\s+]+from|truncate[\s+]+table|\bor\b[\s+]+\d+\s*=\s*\d+|'\s*or\s*'|--[\s\r\n]|/\*[\s\S]*?\*/|;\s*(select|drop|update|delete)\b|\bexec(\s|\+)+(s|x)p\w+)`),
	},
	{
		eventType: domain.EventXSSProbe,
		severity:  domain.SeverityHigh,
		pattern:   regexp.MustCompile(`(?i)(<\s*script|javascript\s*:|on(error|load|click|mouseover)\s*=|<\s*iframe|document\.cookie|eval\s*\(|expression\s*\(|vbscript\s*:)`),
	},
	{
		eventType: domain.EventShellInjection,
		severity:  domain.SeverityHigh,
		pattern:   regexp.MustCompile("(?i)([;&|`]\\s*(cat|ls|rm|wget|curl|nc|bash|sh|ping|whoami|id)\\b|\\$\\([^)]*\\)|&&\\s*\\w+|\\|\\|\\s*\\w+|/bin/(ba)?sh)"),
	},
	{
		eventType: domain.EventPathTraversal,
		severity:  domain.SeverityMedium,
		pattern:   regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f|%252e%252e)`),
	},
	{
		eventType: domain.EventNoSQLInjection,
		severity:  domain.SeverityHigh,
		pattern:   regexp.MustCompile(`(?i)(\$where\b|\$ne\b|\$gt\b|\$lt\b|\$regex\b|\$or\b|\$and\b|\$expr\b|mapreduce|\$function\b)`),
	},
}

// reconProbePaths are well-known sensitive locations scanners walk. Matching
// is advisory and low severity; one probe is noise, many probes from one
// fingerprint is a pattern the dashboard surfaces.
var reconProbePaths = []string{
	"/.env",
	"/.git",
	"/.aws",
	"/.ssh",
	"/wp-admin",
	"/wp-login",
	"/phpmyadmin",
	"/admin.php",
	"/config.php",
	"/etc/passwd",
	"/actuator",
	"/server-status",
}

// Classify scans the textual surface of a request for known attack
// signatures. It is advisory: every match is recorded as a security event,
// but classification alone never blocks the request. Repeated high-severity
// matches from one fingerprint surface through the rate limiter instead.
func (s *Service) Classify(ctx context.Context, surface RequestSurface) []domain.SecurityEvent {
	text := strings.Join([]string{surface.Body, surface.Query, surface.Path, surface.UserAgent, surface.Referer}, "\n")

	var matched []domain.SecurityEvent
	for _, family := range signatureFamilies {
		if !family.pattern.MatchString(text) {
			continue
		}
		s.emit(ctx, family.eventType, family.severity, surface.Fingerprint, map[string]string{
			"method": surface.Method,
			"path":   surface.Path,
		})
		matched = append(matched, domain.SecurityEvent{
			Type:        family.eventType,
			Severity:    family.severity,
			OccurredAt:  s.nowFn(),
			Fingerprint: surface.Fingerprint,
		})
	}

	loweredPath := strings.ToLower(surface.Path)
	for _, probe := range reconProbePaths {
		if strings.Contains(loweredPath, probe) {
			s.emit(ctx, domain.EventReconProbe, domain.SeverityLow, surface.Fingerprint, map[string]string{
				"method": surface.Method,
				"path":   surface.Path,
			})
			matched = append(matched, domain.SecurityEvent{
				Type:        domain.EventReconProbe,
				Severity:    domain.SeverityLow,
				OccurredAt:  s.nowFn(),
				Fingerprint: surface.Fingerprint,
			})
			break
		}
	}

	return matched
}
