package repository

import "gorm.io/gorm"

// AutoMigrate creates the pipeline bookkeeping tables. Per-dataset data
// tables are created on demand by DatasetTableRepository.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&stagedUploadModel{},
		&processedUploadModel{},
		&datasetModel{},
		&importTaskModel{},
		&datasetAnalysisModel{},
		&headerValidationModel{},
	)
}
