package geocoding

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

const backfillBatchSize = 10

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Geocoded int `json:"geocoded"`
	Failed   int `json:"failed"`
}

// BackfillPropertyCoordinates geocodes properties that are missing
// coordinates and have not been attempted yet. Each batch commits in its own
// transaction; failed addresses are marked attempted so they are not retried
// on every pass.
func BackfillPropertyCoordinates(db *gorm.DB, geocoder *Geocoder, logger *logrus.Logger) (BackfillResult, error) {
	var result BackfillResult

	pending := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Property{}).
			Where("(latitude IS NULL OR longitude IS NULL)").
			Where("geocoding_attempted = ?", false).
			Where("address <> '' AND city <> ''")
	}

	var total int64
	if err := pending(db).Count(&total).Error; err != nil {
		return result, fmt.Errorf("failed to count properties: %w", err)
	}
	if total == 0 {
		return result, nil
	}
	logger.Infof("Found %d properties that need geocoding", total)

	for int64(result.Geocoded+result.Failed) < total {
		var batchProcessed int

		err := db.Transaction(func(tx *gorm.DB) error {
			var props []models.Property
			if err := pending(tx).Limit(backfillBatchSize).Find(&props).Error; err != nil {
				return fmt.Errorf("failed to query properties: %w", err)
			}

			for _, p := range props {
				lat, lon, err := geocoder.GeocodeAddress(p.Address, p.City, p.State)
				if err != nil {
					logger.WithError(err).WithField("property_id", p.ID).Warn("Geocoding failed")
					err = tx.Model(&models.Property{}).Where("id = ?", p.ID).
						Update("geocoding_attempted", true).Error
					if err != nil {
						return fmt.Errorf("failed to mark geocoding attempt: %w", err)
					}
					result.Failed++
					batchProcessed++
					continue
				}

				err = tx.Model(&models.Property{}).Where("id = ?", p.ID).
					Updates(map[string]interface{}{
						"latitude":            lat,
						"longitude":           lon,
						"geocoding_attempted": true,
					}).Error
				if err != nil {
					return fmt.Errorf("failed to update coordinates: %w", err)
				}
				result.Geocoded++
				batchProcessed++
			}
			return nil
		})
		if err != nil {
			return result, err
		}

		if batchProcessed == 0 {
			return result, fmt.Errorf("no properties processed in batch, possible data inconsistency")
		}
	}

	logger.Infof("Geocoding completed: %d geocoded, %d failed", result.Geocoded, result.Failed)
	return result, nil
}
