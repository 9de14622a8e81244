package llm

// Option keys understood by every provider in the "options" map of a
// provider group.
const (
	OptionTemperature = "temperature"
	OptionMaxTokens   = "max_tokens"
)

// Roles used when building provider requests.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)
