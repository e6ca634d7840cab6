// Package identity rehydrates an Agent's declared identity for use inside
// an instance's Context. Cryptographic key handling proper — issuance,
// signing, verification — is an external collaborator per the container's
// scope; this package only decodes the textual public key into bytes and
// pairs it with the agent's display name.
package identity

import (
	"encoding/base64"
	"fmt"

	"github.com/cuemby/hive/pkg/types"
)

// Identity is the rehydrated form of an Agent combined with its decoded
// public key bytes, ready to be embedded in an instance Context.
type Identity struct {
	AgentID     string
	DisplayName string
	PublicKey   []byte
}

// Rehydrate decodes agent.PublicKeyB64 and pairs it with the display name.
// An empty PublicKeyB64 is valid (agents may be keyless in tests) and
// yields a nil PublicKey.
func Rehydrate(agent types.Agent) (Identity, error) {
	var key []byte
	if agent.PublicKeyB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(agent.PublicKeyB64)
		if err != nil {
			return Identity{}, fmt.Errorf("agent %q: invalid public key encoding: %w", agent.ID, err)
		}
		key = decoded
	}
	return Identity{
		AgentID:     agent.ID,
		DisplayName: agent.DisplayName,
		PublicKey:   key,
	}, nil
}
