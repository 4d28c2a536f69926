// Package logger provides structured logging for chatstream using zerolog.
//
// Loggers accept optional field maps rather than zerolog's chained events so
// call sites stay uniform across packages:
//
//	log := logger.Get("session")
//	log.Info("stream completed", logger.Fields(logger.FieldSessionID, id, logger.FieldChunks, n))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
package logger
