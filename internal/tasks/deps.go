// Package tasks defines the recurring pipeline tasks and their registry.
// Task keys match the scheduler section of the configuration.
package tasks

import (
	"log/slog"

	"github.com/amanuel-c/telepharm/internal/config"
	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/detect"
	"github.com/amanuel-c/telepharm/internal/loader"
	"github.com/amanuel-c/telepharm/internal/scraper"
)

// TaskDeps contains the dependencies available to scheduled tasks. Scraper
// and Sink are nil when the corresponding component is not configured; the
// tasks that need them fail fast with a clear error.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Loader  *loader.Loader
	Scraper *scraper.Scraper
	Sink    *detect.Sink
	Config  *config.Config
}
