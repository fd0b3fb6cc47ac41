package config

import (
	"fmt"
	"os"
)

// PathsConfig holds the data directories used by the engine.
type PathsConfig struct {
	// UploadDir receives uploaded document files.
	UploadDir string `yaml:"upload_dir,omitempty" json:"upload_dir,omitempty" jsonschema:"title=Upload Directory,default=data/uploads"`

	// ParentsDir holds the per-document parent chunk side-store files.
	ParentsDir string `yaml:"parents_dir,omitempty" json:"parents_dir,omitempty" jsonschema:"title=Parents Directory,description=Parent chunk side-store location,default=data/parents"`

	// ZoteroDownloadDir is the staging area for Zotero attachment downloads.
	ZoteroDownloadDir string `yaml:"zotero_download_dir,omitempty" json:"zotero_download_dir,omitempty" jsonschema:"title=Zotero Download Directory,default=data/zotero_downloads"`
}

func (c *PathsConfig) SetDefaults() {
	if c.UploadDir == "" {
		c.UploadDir = "data/uploads"
	}
	if c.ParentsDir == "" {
		c.ParentsDir = "data/parents"
	}
	if c.ZoteroDownloadDir == "" {
		c.ZoteroDownloadDir = "data/zotero_downloads"
	}
}

func (c *PathsConfig) Validate() error {
	if c.UploadDir == "" || c.ParentsDir == "" || c.ZoteroDownloadDir == "" {
		return fmt.Errorf("all data directories must be set")
	}
	return nil
}

// EnsureDirs creates the data directories if they do not exist.
func (c *PathsConfig) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.ParentsDir, c.ZoteroDownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
