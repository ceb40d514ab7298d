package config

import "time"

// SyncConfig carries every tunable of the matching and import components.
// None of these values are derived from a documented model; they are the
// operating defaults and can be overridden per deployment.
type SyncConfig struct {
    // Auto-link scoring.
    NameWeight        float64
    DateWeight        float64
    AutoLinkThreshold float64
    SuggestThreshold  float64
    DateTolerance     time.Duration
    CandidateWindow   time.Duration // productions created within this window are candidates
    ShowLookback      time.Duration // shows considered for a production's date range

    // Show matching.
    ShowMatchTolerance  time.Duration
    AutoMatchThreshold  float64
    ShowMatchPastWindow time.Duration

    // Sales import.
    SalesImportWindow time.Duration

    // Provider HTTP.
    ProviderTimeout time.Duration
    ProviderRPS     float64
    ProviderBurst   int
}

// DefaultSyncConfig returns the stock thresholds.
func DefaultSyncConfig() SyncConfig {
    return SyncConfig{
        NameWeight:          0.6,
        DateWeight:          0.4,
        AutoLinkThreshold:   0.85,
        SuggestThreshold:    0.5,
        DateTolerance:       7 * 24 * time.Hour,
        CandidateWindow:     730 * 24 * time.Hour,
        ShowLookback:        365 * 24 * time.Hour,
        ShowMatchTolerance:  2 * time.Hour,
        AutoMatchThreshold:  0.9,
        ShowMatchPastWindow: 30 * 24 * time.Hour,
        SalesImportWindow:   30 * 24 * time.Hour,
        ProviderTimeout:     30 * time.Second,
        ProviderRPS:         5,
        ProviderBurst:       5,
    }
}

// LoadSyncConfig overlays SYNC_* environment variables on the defaults.
func LoadSyncConfig() SyncConfig {
    d := DefaultSyncConfig()
    return SyncConfig{
        NameWeight:          envFloat("SYNC_NAME_WEIGHT", d.NameWeight),
        DateWeight:          envFloat("SYNC_DATE_WEIGHT", d.DateWeight),
        AutoLinkThreshold:   envFloat("SYNC_AUTO_LINK_THRESHOLD", d.AutoLinkThreshold),
        SuggestThreshold:    envFloat("SYNC_SUGGEST_THRESHOLD", d.SuggestThreshold),
        DateTolerance:       envDur("SYNC_DATE_TOLERANCE", d.DateTolerance),
        CandidateWindow:     envDur("SYNC_CANDIDATE_WINDOW", d.CandidateWindow),
        ShowLookback:        envDur("SYNC_SHOW_LOOKBACK", d.ShowLookback),
        ShowMatchTolerance:  envDur("SYNC_SHOW_MATCH_TOLERANCE", d.ShowMatchTolerance),
        AutoMatchThreshold:  envFloat("SYNC_AUTO_MATCH_THRESHOLD", d.AutoMatchThreshold),
        ShowMatchPastWindow: envDur("SYNC_SHOW_MATCH_PAST_WINDOW", d.ShowMatchPastWindow),
        SalesImportWindow:   envDur("SYNC_SALES_IMPORT_WINDOW", d.SalesImportWindow),
        ProviderTimeout:     envDur("SYNC_PROVIDER_TIMEOUT", d.ProviderTimeout),
        ProviderRPS:         envFloat("SYNC_PROVIDER_RPS", d.ProviderRPS),
        ProviderBurst:       envInt("SYNC_PROVIDER_BURST", d.ProviderBurst),
    }
}
