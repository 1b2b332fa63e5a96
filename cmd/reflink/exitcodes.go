package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (usage error, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid config file, bad log settings)
	ExitDataError   = 3 // Data error (malformed input file, unknown record)
)
