package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type GameConfig struct {
	// GroupSelectTimeoutSeconds bounds how long a player may deliberate over
	// a flipping group card before a category is auto-assigned.
	GroupSelectTimeoutSeconds int `json:"group_select_timeout_seconds"`
	// SummaryAutoAdvanceSeconds is how long round and fair summaries stay on
	// screen before the match advances on its own.
	SummaryAutoAdvanceSeconds int `json:"summary_auto_advance_seconds"`
	BotMinDelaySeconds        int `json:"bot_min_delay_seconds"`
	BotMaxDelaySeconds        int `json:"bot_max_delay_seconds"`
	// BotAutoFillDelaySeconds configures how many seconds to wait before adding bots to a solo human lobby.
	BotAutoFillDelaySeconds int `json:"bot_auto_fill_delay_seconds"`
	// PenniesPerVP is the wallet payout rate applied at settlement.
	PenniesPerVP int64 `json:"pennies_per_vp"`
}

const (
	defaultGroupSelectTimeoutSeconds = 15
	defaultSummaryAutoAdvanceSeconds = 8
	defaultBotMinDelaySeconds        = 1
	defaultBotMaxDelaySeconds        = 3
	defaultBotAutoFillDelaySeconds   = 5
	defaultPenniesPerVP              = 10
)

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or nil if never loaded.
func GetGameConfig() *GameConfig {
	return cfg
}

// GroupSelectTimeoutSeconds returns the configured selection timeout or the default.
func GroupSelectTimeoutSeconds() int {
	if cfg != nil && cfg.GroupSelectTimeoutSeconds > 0 {
		return cfg.GroupSelectTimeoutSeconds
	}
	return defaultGroupSelectTimeoutSeconds
}

// SummaryAutoAdvanceSeconds returns the configured summary display time or the default.
func SummaryAutoAdvanceSeconds() int {
	if cfg != nil && cfg.SummaryAutoAdvanceSeconds > 0 {
		return cfg.SummaryAutoAdvanceSeconds
	}
	return defaultSummaryAutoAdvanceSeconds
}

// BotMinDelaySeconds returns the minimum seconds a bot waits before acting.
func BotMinDelaySeconds() int {
	if cfg != nil && cfg.BotMinDelaySeconds > 0 {
		return cfg.BotMinDelaySeconds
	}
	return defaultBotMinDelaySeconds
}

// BotMaxDelaySeconds returns the maximum seconds a bot waits before acting.
func BotMaxDelaySeconds() int {
	if cfg != nil && cfg.BotMaxDelaySeconds > 0 {
		return cfg.BotMaxDelaySeconds
	}
	return defaultBotMaxDelaySeconds
}

// BotAutoFillDelaySeconds returns the solo-lobby auto-fill delay.
func BotAutoFillDelaySeconds() int {
	if cfg != nil && cfg.BotAutoFillDelaySeconds > 0 {
		return cfg.BotAutoFillDelaySeconds
	}
	return defaultBotAutoFillDelaySeconds
}

// PenniesPerVP returns the settlement payout rate.
func PenniesPerVP() int64 {
	if cfg != nil && cfg.PenniesPerVP > 0 {
		return cfg.PenniesPerVP
	}
	return defaultPenniesPerVP
}
