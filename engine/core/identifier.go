package core

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a new random identifier used to correlate GPU
// resources in log output.
func GenerateUUID() string {
	return uuid.New().String()
}
