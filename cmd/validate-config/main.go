package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vladimiradmaev/glucose-monitor/internal/config"
)

func main() {
	fmt.Println("🔍 Checking configuration...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  .env file not found: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Configuration is invalid:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Configuration is valid!")
	fmt.Printf("📋 Details:\n")
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.TelegramToken))
	fmt.Printf("  - HTTP Address: %s\n", cfg.HTTPAddr)
	fmt.Printf("  - Timezone: %s\n", cfg.Timezone)
	fmt.Printf("  - DB: %s@%s:%s/%s (sslmode=%s)\n", cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.DBName, cfg.DB.SSLMode)
	if cfg.Redis.Enabled() {
		fmt.Printf("  - Redis: %s\n", cfg.Redis.Addr())
	} else {
		fmt.Printf("  - Redis: disabled (in-memory state and cooldowns)\n")
	}
	fmt.Printf("  - Monitor Interval: %s\n", cfg.Monitor.Interval)
	fmt.Printf("  - Monitor Window: %dh\n", cfg.Monitor.WindowHours)
	fmt.Printf("  - Monitor Workers: %d\n", cfg.Monitor.Workers)
	fmt.Printf("  - Alert Cooldown: %s\n", cfg.Monitor.AlertCooldown)
	fmt.Printf("  - LLM Providers: %s\n", strings.Join(cfg.LLM.Providers, ", "))
	fmt.Printf("  - Gemini API Key: %s\n", maskToken(cfg.LLM.GeminiAPIKey))
	fmt.Printf("  - OpenAI API Key: %s\n", maskToken(cfg.LLM.OpenAIAPIKey))
	if cfg.LLM.OpenAIBaseURL != "" {
		fmt.Printf("  - OpenAI Base URL: %s\n", cfg.LLM.OpenAIBaseURL)
	}
	fmt.Printf("  - LLM Model: %s (temperature %.2f)\n", cfg.LLM.Model, cfg.LLM.Temperature)
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)
}

func maskToken(token string) string {
	if token == "" {
		return "<not set>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
