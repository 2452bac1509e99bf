package pii

import "testing"

func TestRedactor(t *testing.T) {
	redactor := NewRedactor()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short phone and IPv4",
			input:    "User 555-0199 accessed from IP 192.168.1.100",
			expected: "User [REDACTED] accessed from IP [REDACTED]",
		},
		{
			name:     "Email address",
			input:    "contact admin@example.com for details",
			expected: "contact [REDACTED] for details",
		},
		{
			name:     "SSN",
			input:    "applicant ssn 123-45-6789 on file.",
			expected: "applicant ssn [REDACTED] on file.",
		},
		{
			name:     "Full phone with parenthesised area code",
			input:    "call (555) 123-4567 before noon",
			expected: "call [REDACTED] before noon",
		},
		{
			name:     "Full phone with country prefix",
			input:    "escalation line +1-555-123-4567",
			expected: "escalation line [REDACTED]",
		},
		{
			name:     "Dotted phone",
			input:    "fax 555.123.4567 retired",
			expected: "fax [REDACTED] retired",
		},
		{
			name:     "Email with embedded digits wins over phone",
			input:    "bob555-0199@mail.com reported 555-0199",
			expected: "[REDACTED] reported [REDACTED]",
		},
		{
			name:     "IPv4 next to short phone",
			input:    "1.2.3.4 and 555-1234",
			expected: "[REDACTED] and [REDACTED]",
		},
		{
			name:     "Timestamps and hostnames untouched",
			input:    "2025-11-30 ERROR: Connection timeout on db-01",
			expected: "2025-11-30 ERROR: Connection timeout on db-01",
		},
		{
			name:     "No sensitive content",
			input:    "plain message with punctuation, spacing,  and\ttabs",
			expected: "plain message with punctuation, spacing,  and\ttabs",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "Multiple classes in one line",
			input:    "jane.doe@corp.io 123-45-6789 (555) 123-4567 10.0.0.1",
			expected: "[REDACTED] [REDACTED] [REDACTED] [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactor.Redact(tt.input)
			if got != tt.expected {
				t.Errorf("Redact() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRedactorKeepsSurroundingWhitespace(t *testing.T) {
	redactor := NewRedactor()

	// A match must never extend into the separator before the number:
	// the characters around the placeholder stay byte-for-byte intact.
	tests := []struct {
		input  string
		prefix string
		suffix string
	}{
		{"fax 555.123.4567 retired", "fax ", " retired"},
		{"call (555) 123-4567 before noon", "call ", " before noon"},
		{"escalation line +1-555-123-4567", "escalation line ", ""},
		{"dial\t555-867-5309  now", "dial\t", "  now"},
	}

	for _, tt := range tests {
		got := redactor.Redact(tt.input)
		want := tt.prefix + RedactedPlaceholder + tt.suffix
		if got != want {
			t.Errorf("Redact(%q) = %q, want %q", tt.input, got, want)
		}
	}
}

func TestRedactorIdempotent(t *testing.T) {
	redactor := NewRedactor()

	inputs := []string{
		"User 555-0199 accessed from IP 192.168.1.100",
		"jane.doe@corp.io 123-45-6789 (555) 123-4567 10.0.0.1",
		"already [REDACTED] content stays put",
		"nothing sensitive here",
	}

	for _, input := range inputs {
		once := redactor.Redact(input)
		twice := redactor.Redact(once)
		if once != twice {
			t.Errorf("Redact not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}
