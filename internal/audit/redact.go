package audit

import "regexp"

const redactedPlaceholder = "[REDACTED]"

type redaction struct {
	re   *regexp.Regexp
	repl string
}

var redactions = []redaction{
	// AWS
	{regexp.MustCompile(`(?i)\b(aws_access_key_id|aws_secret_access_key|aws_session_token)(\s*[=:]\s*)['"]?[A-Za-z0-9/+=]{20,}['"]?`), "${1}${2}" + redactedPlaceholder},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), redactedPlaceholder},

	// GitHub
	{regexp.MustCompile(`(?i)\b(github_token|gh_token|github_pat)(\s*[=:]\s*)['"]?[A-Za-z0-9_-]{30,}['"]?`), "${1}${2}" + redactedPlaceholder},
	{regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36}\b`), redactedPlaceholder},
	{regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,}\b`), redactedPlaceholder},

	// Generic API keys
	{regexp.MustCompile(`(?i)\b(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)(\s*[=:]\s*)['"]?[A-Za-z0-9_-]{16,}['"]?`), "${1}${2}" + redactedPlaceholder},

	// Private keys
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`), redactedPlaceholder},

	// Authorization headers
	{regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9._~+/-]{20,}=*`), "${1}" + redactedPlaceholder},

	// Basic auth in URLs
	{regexp.MustCompile(`\b([a-z][a-z0-9+.-]*://)[^\s:/@]+:[^\s@/]+@`), "${1}" + redactedPlaceholder + "@"},

	// Slack tokens
	{regexp.MustCompile(`\bxox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`), redactedPlaceholder},

	// Stripe
	{regexp.MustCompile(`\b[sr]k_live_[0-9a-zA-Z]{24,}\b`), redactedPlaceholder},

	// Passwords
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret)(\s*[=:]\s*)['"]?[^\s'"]{8,}['"]?`), "${1}${2}" + redactedPlaceholder},
}

// Redact replaces tokens, keys, passwords and URL credentials in s with a
// placeholder.
func Redact(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}
