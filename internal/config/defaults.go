package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultModelBackend   = "local"
	DefaultModelName      = "TinyLlama/TinyLlama-1.1B-Chat-v1.0"
	DefaultModelBaseURL   = "http://localhost:8080/v1"
	DefaultModelMaxTokens = 150

	DefaultWelcomeMessage  = "Hi! I'm WiseWhisper, your intelligent assistant. Ask me anything!"
	DefaultFallbackMessage = "I'm sorry, I couldn't process your request."

	DefaultTypingInterval = 4 * time.Second
	DefaultDBPath         = ""
	DefaultStatsRetention = 30 * 24 * time.Hour
)

// DefaultSpecialTokens are control tokens removed from decoded model output.
var DefaultSpecialTokens = []string{
	"<s>", "</s>", "<unk>", "<pad>",
	"<|endoftext|>", "<|im_start|>", "<|im_end|>",
	"<|system|>", "<|user|>", "<|assistant|>",
}

// Every key is registered here so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.drop_pending_updates", false)
	v.SetDefault("telegram.typing_interval", DefaultTypingInterval)
	v.SetDefault("telegram.api_url", "")

	v.SetDefault("model.backend", DefaultModelBackend)
	v.SetDefault("model.name", DefaultModelName)
	v.SetDefault("model.base_url", DefaultModelBaseURL)
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.max_tokens", DefaultModelMaxTokens)
	v.SetDefault("model.candidates", 1)
	v.SetDefault("model.temperature", 0)
	v.SetDefault("model.echo_prompt", true)
	v.SetDefault("model.timeout", time.Duration(0))
	v.SetDefault("model.special_tokens", DefaultSpecialTokens)

	v.SetDefault("messages.welcome", DefaultWelcomeMessage)
	v.SetDefault("messages.fallback", DefaultFallbackMessage)

	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.stats_retention", DefaultStatsRetention)

	v.SetDefault("scheduler.tasks", map[string]any{
		"stats_report": map[string]any{
			"enabled":  true,
			"schedule": "0 0 * * * *",
		},
		"stats_retention": map[string]any{
			"enabled":  true,
			"schedule": "0 30 3 * * *",
		},
	})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)
}
