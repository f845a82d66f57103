package core

// Environment names the deployment tier. It mainly steers logging:
// development gets human-readable console output, everything else
// structured JSON.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the service runs in the production tier.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment maps a raw config value onto a known tier. Anything
// unrecognized falls back to Development rather than refusing to start.
func ParseEnvironment(v string) Environment {
	switch Environment(v) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}
