// Copyright (c) Microsoft. All rights reserved.

package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// config is the sample's environment-driven configuration.
type config struct {
	Token       string
	TokenScope  string
	BaseURL     string
	Endpoint    string
	ID          string
	UserID      string
	Variables   map[string]string
	IdleTimeout time.Duration
	Debug       bool
}

func loadConfig() config {
	return config{
		Token:       os.Getenv("EASYBEAM_TOKEN"),
		TokenScope:  os.Getenv("EASYBEAM_TOKEN_SCOPE"),
		BaseURL:     getEnvOrDefault("EASYBEAM_BASE_URL", ""),
		Endpoint:    getEnvOrDefault("EASYBEAM_ENDPOINT", "prompt"),
		ID:          getEnvOrDefault("EASYBEAM_ID", "demo"),
		UserID:      os.Getenv("EASYBEAM_USER_ID"),
		Variables:   parseVariables(os.Getenv("EASYBEAM_VARIABLES")),
		IdleTimeout: getEnvAsDurationOrDefault("EASYBEAM_IDLE_TIMEOUT", 30*time.Second),
		Debug:       os.Getenv("DEBUG") != "",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

// parseVariables reads "k1=v1,k2=v2". Entries without '=' are skipped.
func parseVariables(s string) map[string]string {
	vars := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		vars[k] = strings.TrimSpace(v)
	}
	return vars
}
