package model

import "time"

// Book represents a title in the catalogue, keyed by ISBN.
//
// COPY BOOKKEEPING:
// TotalCopies is how many physical copies the library owns (at least 1).
// AvailableCopies is how many are currently on the shelf. The invariant
//
//	0 <= AvailableCopies <= TotalCopies
//
// must hold in every reachable state. AvailableCopies is decremented exactly
// once per successful issue and incremented exactly once per successful
// return — both happen inside the loan repository's atomic operations, never
// as a standalone write. Nothing else may touch the counter.
type Book struct {
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher,omitempty"`
	Category        string    `json:"category,omitempty"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
}
