package ucp

// ProfilePath is where the agent profile document is served.
const ProfilePath = "/.well-known/ucp-agent.json"

// Capability is a protocol capability the agent supports.
type Capability struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Spec    string `json:"spec,omitempty"`
}

// Profile is the agent profile document merchants fetch to authorize
// delegated checkout.
type Profile struct {
	UCP ProfileUCP `json:"ucp"`
}

type ProfileUCP struct {
	Version      string       `json:"version"`
	Capabilities []Capability `json:"capabilities"`
	Delegations  []string     `json:"delegations"`
}

// AgentProfile returns the static profile for this agent.
func AgentProfile() Profile {
	return Profile{UCP: ProfileUCP{
		Version: ProtocolVersion,
		Capabilities: []Capability{
			{Name: "dev.ucp.shopping.checkout", Version: ProtocolVersion},
			{Name: "dev.ucp.shopping.fulfillment", Version: ProtocolVersion},
			{Name: "dev.ucp.shopping.embedded_checkout", Version: ProtocolVersion},
		},
		Delegations: []string{DelegateAddressChange},
	}}
}
