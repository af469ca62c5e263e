// Package supabase wraps the Supabase client used for realtime render
// lifecycle events. Storage and auth talk to Supabase through their own
// packages.
package supabase

import (
	"github.com/supabase-community/supabase-go"

	"renderiq-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}
