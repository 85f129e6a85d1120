// Package bible fetches book catalogs, chapter lists and verse content from
// an api.bible compatible content source.
package bible

import "github.com/starford/verbo/internal/models"

// DefaultEdition is the edition selected when none is configured.
const DefaultEdition = "592420522e16049f-01"

var editions = []models.Edition{
	{ID: "592420522e16049f-01", Name: "Reina Valera 1909"},
	{ID: "6b7f504f1b6050c1-01", Name: "Nueva Biblia Viva"},
	{ID: "48acedcf8595c754-01", Name: "Palabra de Dios para ti"},
	{ID: "482ddd53705278cc-02", Name: "Versión Biblia Libre"},
}

// Editions returns the built-in edition list.
func Editions() []models.Edition {
	out := make([]models.Edition, len(editions))
	copy(out, editions)
	return out
}

// KnownEdition reports whether id is one of the built-in editions.
func KnownEdition(id string) bool {
	for _, e := range editions {
		if e.ID == id {
			return true
		}
	}
	return false
}
