package database

import "jammer/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Connection{},
		&models.DM{},
		&models.Jam{},
		&models.JamMember{},
		&models.Message{},
	}
}
