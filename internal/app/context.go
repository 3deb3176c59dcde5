package app

import (
	"fmt"
	"os"

	"scriptstudio/internal/config"
	"scriptstudio/internal/db"
)

// ResolveConfig ensures the workspace exists and returns its config,
// seeding a default studio.yml on first use.
func ResolveConfig(workspace string) (*config.Config, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	path := config.Path(workspace)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
			return nil, fmt.Errorf("seed %s: %w", path, err)
		}
	}
	return config.Load(workspace)
}
