package api

const (
	defaultSessionOpenRate = 30

	// Query defaults for list endpoints.
	defaultListLimit   = 50
	maxListLimit       = 1000
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)
