//go:build !race

package slimexpress

func passwordHashCost() int {
	return DefaultHashCost
}
