package config

import "strings"

type NotifierConfig struct {
	WebhookURL   string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      int
}

func NewNotifierConfig() *NotifierConfig {
	var scopes []string
	if raw := getenv("WEBHOOK_OAUTH_SCOPES", ""); raw != "" {
		scopes = strings.Split(raw, ",")
	}
	return &NotifierConfig{
		WebhookURL:   getenv("WEBHOOK_URL", ""),
		ClientID:     getenv("WEBHOOK_OAUTH_CLIENT_ID", ""),
		ClientSecret: getenv("WEBHOOK_OAUTH_CLIENT_SECRET", ""),
		TokenURL:     getenv("WEBHOOK_OAUTH_TOKEN_URL", ""),
		Scopes:       scopes,
		Timeout:      getenvInt("WEBHOOK_TIMEOUT_SEC", 10),
	}
}
