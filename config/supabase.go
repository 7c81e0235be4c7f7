package config

import (
	"fmt"

	"github.com/supabase-community/gotrue-go"
	supa "github.com/supabase-community/supabase-go"
)

// NewSupabaseClient builds the record-store client. The service key is
// preferred so the store can query across row-level security; explicit
// user scoping happens in the history store. The anon key is a degraded
// fallback for local development.
func NewSupabaseClient(cfg *Config) (*supa.Client, error) {
	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is not set")
	}

	key := cfg.SupabaseServiceKey
	if key == "" {
		key = cfg.SupabaseAnonKey
	}
	if key == "" {
		return nil, fmt.Errorf("neither SUPABASE_SERVICE_KEY nor SUPABASE_ANON_KEY is set")
	}

	client, err := supa.NewClient(cfg.SupabaseURL, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing Supabase client: %w", err)
	}
	return client, nil
}

// NewAuthClient builds the gotrue client used to resolve caller bearer
// tokens into user identities. It talks to the same Supabase project's auth
// endpoint with the anon key.
func NewAuthClient(cfg *Config) (gotrue.Client, error) {
	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is not set")
	}
	key := cfg.SupabaseAnonKey
	if key == "" {
		key = cfg.SupabaseServiceKey
	}
	if key == "" {
		return nil, fmt.Errorf("no Supabase API key configured for auth")
	}
	return gotrue.New("", key).WithCustomGoTrueURL(cfg.SupabaseURL + "/auth/v1"), nil
}
