// Package logging provides structured logging for the object lifecycle core
// and the mgx3d command.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Child loggers carry the component and the object
// handle so that edge changes, self-destructions and registry operations can
// be correlated after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (component, object handle, unique name)
//   - A discarding logger for tests and unconfigured objects
//   - Size-based rotation of mgx3d.log with optional gzip of backups
//   - Reading, filtering and exporting past logs (ReadLogs, FilterLogs)
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	objLog := logger.WithComponent("registry").WithObject(obj.ID(), "geo1")
//	objLog.Info("object registered")
package logging
