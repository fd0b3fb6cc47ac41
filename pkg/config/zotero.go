package config

import (
	"fmt"
	"time"
)

// ZoteroConfig enables automatic import of PDF attachments from a Zotero
// library via the Zotero Web API.
type ZoteroConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// APIKey is a Zotero Web API key with library read access.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// UserID is the numeric Zotero user id the library belongs to.
	UserID string `yaml:"user_id,omitempty" json:"user_id,omitempty" jsonschema:"title=User ID"`

	// BaseURL of the Zotero API.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,default=https://api.zotero.org"`

	// PollInterval is how often the poller looks for new attachments.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"title=Poll Interval,default=60s"`

	// AutoSync queues newly discovered attachments without being asked.
	AutoSync *bool `yaml:"auto_sync,omitempty" json:"auto_sync,omitempty" jsonschema:"title=Auto Sync,default=true"`
}

func (c *ZoteroConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.zotero.org"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.AutoSync == nil {
		t := true
		c.AutoSync = &t
	}
}

func (c *ZoteroConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required when zotero is enabled")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required when zotero is enabled")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

// AutoSyncEnabled reports whether the poller queues new attachments itself.
func (c *ZoteroConfig) AutoSyncEnabled() bool {
	return c.AutoSync == nil || *c.AutoSync
}
