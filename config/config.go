package config

import "os"

// Config holds the environment-driven settings for the gateway.
type Config struct {
	ListenAddr string

	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	ExtractorURL   string
	ExtractorToken string
}

// Load reads configuration from environment variables with development
// defaults for the non-secret values.
func Load() *Config {
	return &Config{
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		ExtractorURL:       getenv("EXTRACTOR_URL", "http://localhost:9090"),
		ExtractorToken:     os.Getenv("EXTRACTOR_TOKEN"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
