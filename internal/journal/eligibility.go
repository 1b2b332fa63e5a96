package journal

// IsEligible reports whether a journal qualifies for automatic reference
// checking: citations must be enabled and both Crossref credentials set.
// A nil config is never eligible.
func IsEligible(cfg *JournalConfig) bool {
	if cfg == nil {
		return false
	}
	return cfg.CitationsEnabled && cfg.Credentials.Username != "" && cfg.Credentials.Password != ""
}
