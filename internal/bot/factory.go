package bot

import (
	"fmt"
	"math/rand"
)

// NewAgent creates a bot agent for a provisioned bot identity. Every
// difficulty currently maps to the uniform random strategy; the identity
// still records the intended tier for when stronger brains land.
func NewAgent(userID string) (*Agent, error) {
	if !IsBot(userID) {
		return nil, fmt.Errorf("unknown bot id: %s", userID)
	}
	return &Agent{
		ID:       userID,
		Name:     GetBotDisplayName(userID),
		Strategy: NewRandomBot(nil),
	}, nil
}

// NewAgentWithRng creates an agent with a seeded rng for deterministic tests.
func NewAgentWithRng(userID string, rng *rand.Rand) *Agent {
	return &Agent{
		ID:       userID,
		Name:     GetBotDisplayName(userID),
		Strategy: NewRandomBot(rng),
	}
}
