package redact

// Policy gates whether redaction runs at all. Adapters hold one and call
// Apply on every piece of free text before it is handed to the Normalizer;
// when disabled Apply is a no-op so the hot path costs nothing.
type Policy struct {
	Enabled bool
}

// NewPolicy returns a Policy reflecting the pii_redaction config flag.
func NewPolicy(enabled bool) *Policy {
	return &Policy{Enabled: enabled}
}

// Apply redacts s and reports whether anything was masked. When the
// policy is disabled it returns s unchanged and applied=false.
func (p *Policy) Apply(s string) (out string, applied bool) {
	if p == nil || !p.Enabled || s == "" {
		return s, false
	}
	redacted := String(s)
	return redacted, redacted != s
}
