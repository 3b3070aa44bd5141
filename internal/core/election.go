package core

import "github.com/jamroom/server/internal/domain"

// ElectHost picks the next host after the current one departs: the first
// remaining member in join order. Pure and deterministic; calling it twice
// with the same input yields the same result. Returns false when nobody
// remains (the room is about to be destroyed).
func ElectHost(members []domain.Identity, departing domain.Identity) (domain.Identity, bool) {
	for _, m := range members {
		if m != departing {
			return m, true
		}
	}
	return "", false
}
