package core

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment normalises the provided value into a known environment.
// Unknown values fall back to Development so the application can still start
// with sensible defaults.
func ParseEnvironment(v string) Environment {
	if Environment(v) == Production {
		return Production
	}
	return Development
}
