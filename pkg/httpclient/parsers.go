package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseAnthropicHeaders reads Anthropic rate-limit headers.
func ParseAnthropicHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	if retryAfter := headers.Get("retry-after"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	// Reset headers are RFC3339; the earliest one wins.
	for _, header := range []string{
		"anthropic-ratelimit-requests-reset",
		"anthropic-ratelimit-input-tokens-reset",
		"anthropic-ratelimit-output-tokens-reset",
	} {
		if resetStr := headers.Get(header); resetStr != "" {
			if resetTime, err := time.Parse(time.RFC3339, resetStr); err == nil {
				info.ResetTime = resetTime.Unix()
				break
			}
		}
	}

	if remaining := headers.Get("anthropic-ratelimit-requests-remaining"); remaining != "" {
		info.RequestsRemaining, _ = strconv.Atoi(remaining)
	}

	return info
}

// ParseOpenAIHeaders reads OpenAI rate-limit headers.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	if remaining := headers.Get("x-ratelimit-remaining-requests"); remaining != "" {
		info.RequestsRemaining, _ = strconv.Atoi(remaining)
	}
	if remaining := headers.Get("x-ratelimit-remaining-tokens"); remaining != "" {
		info.TokensRemaining, _ = strconv.Atoi(remaining)
	}

	return info
}
