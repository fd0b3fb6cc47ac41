package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and bare $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvString substitutes environment variables in a single string.
// ${VAR:-default} falls back to default when VAR is unset or empty.
func expandEnvString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if idx := strings.Index(inner, ":-"); idx != -1 {
				if val := os.Getenv(inner[:idx]); val != "" {
					return val
				}
				return inner[idx+2:]
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}

// expandEnvValue walks a decoded YAML tree and expands every string leaf.
func expandEnvValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = expandEnvValue(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = expandEnvValue(item)
		}
		return result
	default:
		return v
	}
}

// LoadEnvFiles loads .env.local and .env from the working directory.
// Missing files are fine; malformed ones are not.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ProviderAPIKey returns the conventional environment API key for a
// provider, or "" when none applies.
func ProviderAPIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case "cohere":
		return os.Getenv("COHERE_API_KEY")
	default:
		return ""
	}
}
