/*
Package log provides structured logging for the state machine using zerolog.

It wraps zerolog with component-scoped child loggers and a single global
init path, the same shape used throughout this repo's ambient packages:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("driver")
	logger.Info().Uint64("store_version", 42).Msg("block committed")

WithHeight, WithTxHash, and WithVersion build child loggers carrying block
height, transaction hash, or store version. The packages in this repo log
through WithComponent and add such fields per log line.
*/
package log
