package address

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// View is the wire shape of a saved address.
type View struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"address_line1"`
	Line2      string    `json:"address_line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
}

func ViewOf(a models.Address) View {
	return View{
		ID:         a.ID,
		Title:      a.Title,
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}

func ViewsOf(list []models.Address) []View {
	out := make([]View, 0, len(list))
	for _, a := range list {
		out = append(out, ViewOf(a))
	}
	return out
}
