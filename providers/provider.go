package providers

import "context"

// Adapter ist das Interface, das jeder Quell-Adapter (Graph-API, Repository,
// Register, ...) implementieren muss. Adapter liefern bereits normalisierte
// Dokumente; Timeout und Abbruch gehören dem übergebenen Context.
type Adapter interface {
	// Harvest holt alle aktuell verfügbaren Dokumente der Quelle für die
	// Forschungsausgabe der Heimat-Institution.
	Harvest(ctx context.Context) ([]*Document, error)

	// Tag gibt den eindeutigen SourceTag des Adapters zurück.
	Tag() SourceTag
}
