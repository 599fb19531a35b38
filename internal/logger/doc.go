// Package logger provides component based structured logging for ytlinks.
//
// Features:
//   - Levels TRACE, DEBUG, INFO, WARN, ERROR
//   - Per-component filtering
//   - Text, JSON and color output, optional caller and timestamp
//   - File output with size or age based rotation
//   - Mirroring of every entry into slog handlers
//
// Usage:
//
//	log := logger.WithComponent(logger.ComponentResolver).With(map[string]interface{}{"rid": rid})
//	log.Info("watch page fetched", map[string]interface{}{"status": 200})
//
//	cfg, err := logger.EnvironmentConfig().ToLoggerConfig()
//	if err == nil {
//		cfg.Mirrors = append(cfg.Mirrors, slog.NewJSONHandler(f, nil))
//		logger.SetGlobalLogger(logger.New(cfg))
//	}
//
// Environment variables: YTLINKS_LOG_LEVEL, YTLINKS_LOG_FORMAT,
// YTLINKS_LOG_OUTPUT (stdout, stderr, null or file:<path>),
// YTLINKS_LOG_CALLER, YTLINKS_LOG_TIMESTAMP, YTLINKS_LOG_MAX_SIZE and
// YTLINKS_LOG_COMPONENTS (comma separated, or "all").
package logger
