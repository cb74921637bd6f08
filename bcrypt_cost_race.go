//go:build race

package etwin

import "golang.org/x/crypto/bcrypt"

// Race-enabled builds are slow enough that the production cost blows
// through test timeouts, so fall back to the library default.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
