package domain

import "time"

// Store is a retailer that complaints are filed against.
type Store struct {
	StoreID        string
	Name           string
	Email          string
	PrimaryColor   string
	SecondaryColor *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
