// Package logger provides structured logging for the conveyor using zerolog.
//
// Loggers are explicit values: the conveyor, its worker lines and its
// supplier loops each receive a derived *Logger tagged with the component,
// pipeline or supplier they serve. There is no package-level logger.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "conveyor").WithComponent("router")
//	log.Warn("package was not routed", logger.Fields(logger.FieldPackageID, id))
package logger
