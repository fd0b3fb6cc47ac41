package config

import "fmt"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Bind address,default=0.0.0.0"`

	// Port is the listen port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Listen port,minimum=1,maximum=65535,default=8000"`

	// EnableCORS controls the permissive CORS middleware used by local UIs.
	EnableCORS *bool `yaml:"enable_cors,omitempty" json:"enable_cors,omitempty" jsonschema:"title=Enable CORS,description=Allow cross-origin requests,default=true"`

	// MaxUploadMB caps multipart document uploads.
	MaxUploadMB int `yaml:"max_upload_mb,omitempty" json:"max_upload_mb,omitempty" jsonschema:"title=Max Upload MB,description=Maximum upload size in megabytes,default=100"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.EnableCORS == nil {
		t := true
		c.EnableCORS = &t
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 100
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// Address returns the host:port string for net.Listen.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSEnabled reports whether the CORS middleware should be installed.
func (c *ServerConfig) CORSEnabled() bool {
	return c.EnableCORS == nil || *c.EnableCORS
}
