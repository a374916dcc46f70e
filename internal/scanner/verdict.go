package scanner

import "encoding/json"

// Verdict is the outcome of checking a URL.
type Verdict string

const (
	// VerdictSafe means at least one provider scored the URL clean.
	VerdictSafe Verdict = "safe"
	// VerdictMalicious means a provider flagged the URL.
	VerdictMalicious Verdict = "malicious"
	// VerdictUnknown means the providers produced a real but ambiguous report.
	VerdictUnknown Verdict = "unknown"
	// VerdictError means no provider produced a usable report at all.
	VerdictError Verdict = "error"
)

// Conclusive tells whether the verdict ends a scan without consulting the
// fallback provider.
func (v Verdict) Conclusive() bool {
	return v == VerdictSafe || v == VerdictMalicious
}

// PrimaryReport is a ready report from the primary provider.
type PrimaryReport struct {
	// ScanID echoes the handle the report belongs to.
	ScanID string `json:"scan_id"`

	// Malicious is the provider's overall malicious flag.
	Malicious bool `json:"malicious"`
	// EngineMalicious is the provider's own engine flag.
	EngineMalicious bool `json:"engine_malicious"`
	// CommunityMalicious is the community-sourced flag.
	CommunityMalicious bool `json:"community_malicious"`

	// Score is the overall risk score. Zero means no signal.
	Score int `json:"score"`
	// Blocklists holds the names of block-lists the URL matched.
	Blocklists []string `json:"blocklists"`

	// Raw is the provider's response body, kept for the audit payload.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// FallbackReport is a report from the fallback provider. Status "completed"
// is the only terminal state; anything else means the analysis is still
// running and the caller should keep polling.
type FallbackReport struct {
	Status string        `json:"status"`
	Stats  FallbackStats `json:"stats"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// FallbackStats aggregates per-engine counts from the fallback provider.
type FallbackStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
	Timeout    int `json:"timeout"`
}

// Completed reports whether the analysis reached its terminal state.
func (r *FallbackReport) Completed() bool {
	return r.Status == "completed"
}

// primaryVerdict maps a ready primary report to a verdict. Any malicious flag
// wins outright. A zero score with no block-list matches is safe. A positive
// score or a block-list match without a malicious flag is ambiguous and
// escalates to the fallback provider.
func primaryVerdict(r *PrimaryReport) Verdict {
	switch {
	case r.Malicious || r.EngineMalicious || r.CommunityMalicious:
		return VerdictMalicious
	case r.Score == 0 && len(r.Blocklists) == 0:
		return VerdictSafe
	default:
		return VerdictUnknown
	}
}

// fallbackVerdict maps a completed fallback report to a verdict.
func fallbackVerdict(r *FallbackReport) Verdict {
	stats := r.Stats
	switch {
	case stats.Malicious > 0 || stats.Suspicious > 0:
		return VerdictMalicious
	case stats.Harmless > 0:
		return VerdictSafe
	default:
		return VerdictUnknown
	}
}
