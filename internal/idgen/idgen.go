package idgen

import (
	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixReading = "rdg_"
	PrefixCommand = "cmd_"
	PrefixRequest = "req_"
)

// NewReading generates a new reading ID with rdg_ prefix
func NewReading() string {
	return PrefixReading + uuid.New().String()
}

// NewCommand generates a new command audit ID with cmd_ prefix
func NewCommand() string {
	return PrefixCommand + uuid.New().String()
}

// NewRequest generates a request correlation ID with req_ prefix
func NewRequest() string {
	return PrefixRequest + uuid.New().String()
}
