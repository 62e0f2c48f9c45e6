package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/json"

	"gorm.io/gorm"

	"pubfuse/models"
)

// SnapshotWorks serialisiert alle kanonischen Works samt Beziehungen als
// gzip-komprimiertes JSON für den Export.
func SnapshotWorks(db *gorm.DB) ([]byte, int, error) {
	var works []models.Work
	err := db.Preload("Venue").Preload("Venue.Deal").
		Preload("Authorships").Preload("Authorships.Author").
		Preload("Locations").
		Order("id asc").Find(&works).Error
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gzipWriter).Encode(works); err != nil {
		return nil, 0, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(works), nil
}
