// Package logger provides a structured logging interface over zerolog.
//
// Console output is colourised and written to stderr so that the final
// summary on stdout stays readable. When LoggingConfig.File is
// set, JSON lines are appended to that file as well.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "resolver")
//	log.DebugWithFields("attempt failed", map[string]interface{}{
//	    "asset_id": "12345",
//	    "ext":      "jpeg",
//	})
//
// Tests use NewNopLogger, or NewTestLogger to assert on captured messages.
package logger
