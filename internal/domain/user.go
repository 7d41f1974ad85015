package domain

import "strings"

// Buyer is the authenticated principal placing or owning orders.
type Buyer struct {
	ID        int64  `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

func (b Buyer) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}
