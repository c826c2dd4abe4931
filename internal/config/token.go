package config

import (
	"os"
	"regexp"
	"strings"
)

var (
	jsonTokenRe = regexp.MustCompile(`"(?:authToken|token|access_token)"\s*:\s*"([^"]+)"`)
	envTokenRe  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:C88_AUTH_TOKEN|AUTH_TOKEN|authToken)\s*=\s*(.+?)\s*$`)
)

// LoadTokenFile reads an auth token from path. The file may hold the bare
// token, a KEY=value line, or a JSON dump of the site's local storage.
// An empty string is returned when the file is missing or holds no token.
func LoadTokenFile(path string) string {
	if path == "" {
		return ""
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return parseToken(string(content))
}

func parseToken(content string) string {
	if match := jsonTokenRe.FindStringSubmatch(content); len(match) > 1 {
		return CleanToken(match[1])
	}
	if match := envTokenRe.FindStringSubmatch(content); len(match) > 1 {
		return CleanToken(match[1])
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.ContainsAny(trimmed, "\n{}=") {
		return ""
	}
	return CleanToken(trimmed)
}

// CleanToken trims whitespace, surrounding quotes and a Bearer prefix.
func CleanToken(token string) string {
	token = strings.TrimSpace(token)
	for len(token) >= 2 {
		first, last := token[0], token[len(token)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			token = strings.TrimSpace(token[1 : len(token)-1])
			continue
		}
		break
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
