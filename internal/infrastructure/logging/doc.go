// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON lines on stderr
//   - Development: colored console output
//
// Every client component takes a *zap.Logger; pass Logger.Component(name)
// to get a named child so stream, chat and planner lines can be told apart.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	client := stream.NewClient(cfg, logger.Component("stream"))
package logging
