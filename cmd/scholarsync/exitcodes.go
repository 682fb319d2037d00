package main

// Exit codes
const (
	ExitSuccess            = 0 // Success
	ExitError              = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError        = 2 // Configuration error (invalid option, missing scholar ID)
	ExitProfileUnavailable = 3 // Profile could not be retrieved after exhausting retries
)
