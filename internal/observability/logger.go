package observability

import (
	"github.com/rs/zerolog"

	logs "github.com/danmuck/kiroshi/internal/logging"
)

// InitLogger configures the process logger once and returns a child logger
// tagged with the application name.
func InitLogger(app, level string) zerolog.Logger {
	logs.ConfigureLevel(level)
	return logs.Logger().With().Str("app", app).Logger()
}
