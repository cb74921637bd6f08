//go:build !race

package etwin

func passwordHashCost() int {
	return DefaultBcryptCost
}
