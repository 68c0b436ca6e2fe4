package cmd

// Exit codes for the apitest CLI
const (
	// ExitSuccess indicates all expectations passed
	ExitSuccess = 0

	// ExitExpectFailure indicates one or more expectations failed
	ExitExpectFailure = 1

	// ExitRequestError indicates the request could not be sent
	ExitRequestError = 2

	// ExitConfigError indicates a configuration or request-file error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
