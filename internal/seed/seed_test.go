package seed

import (
	"testing"

	"jammer/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	if len(c.Instruments) == 0 {
		t.Fatal("catalog has no instruments")
	}
	if len(c.Genres) == 0 {
		t.Fatal("catalog has no genres")
	}
	if len(c.JamTitles) == 0 {
		t.Fatal("catalog has no jam titles")
	}
	for _, city := range c.Cities {
		if city.Name == "" {
			t.Fatal("catalog city missing name")
		}
		if city.Lat == 0 && city.Lng == 0 {
			t.Fatalf("catalog city %s has no coordinates", city.Name)
		}
	}
}

func TestFactory_DryRunBuildsEntities(t *testing.T) {
	f, err := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true})
	if err != nil {
		t.Fatalf("failed to create factory: %v", err)
	}

	user, err := f.CreateUser()
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("dry-run user should get a synthetic ID")
	}
	if !user.HasCoordinates() {
		t.Fatal("seeded user should carry coordinates")
	}
	if len(user.Instruments) == 0 {
		t.Fatal("seeded user should play something")
	}

	jam, err := f.CreateJam(user)
	if err != nil {
		t.Fatalf("CreateJam failed: %v", err)
	}
	if jam.HostID != user.ID {
		t.Fatalf("jam host mismatch: got %d want %d", jam.HostID, user.ID)
	}
	if !jam.JamTime.After(user.CreatedAt) {
		t.Fatal("seeded jam should be in the future")
	}
	if jam.City != user.City {
		t.Fatalf("jam should be placed in the host's city: got %s want %s", jam.City, user.City)
	}
}

func TestSeeder_RunAgainstSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Connection{},
		&models.DM{},
		&models.Jam{},
		&models.JamMember{},
		&models.Message{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	seeder, err := NewSeeder(db, Options{
		NumUsers:   8,
		NumJams:    5,
		SkipBcrypt: true,
	})
	if err != nil {
		t.Fatalf("failed to create seeder: %v", err)
	}
	if err := seeder.Run(); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	if userCount != 8 {
		t.Fatalf("expected 8 users, got %d", userCount)
	}

	var admin models.User
	if err := db.Where("username = ?", "admin").First(&admin).Error; err != nil {
		t.Fatalf("admin user not seeded: %v", err)
	}
	if !admin.IsAdmin {
		t.Fatal("seeded admin should have is_admin set")
	}

	var jamCount int64
	db.Model(&models.Jam{}).Count(&jamCount)
	if jamCount != 5 {
		t.Fatalf("expected 5 jams, got %d", jamCount)
	}

	// Every DM pair must be canonically ordered
	var dms []models.DM
	db.Find(&dms)
	for _, dm := range dms {
		if dm.UserAID >= dm.UserBID {
			t.Fatalf("DM %d pair not canonical: %d >= %d", dm.ID, dm.UserAID, dm.UserBID)
		}
	}

	// Jam chat messages must come from the host or an approved member
	var jamMsgs []models.Message
	db.Where("room_type = ?", models.RoomTypeJam).Find(&jamMsgs)
	for _, msg := range jamMsgs {
		var jam models.Jam
		if err := db.First(&jam, msg.RoomID).Error; err != nil {
			t.Fatalf("jam %d missing for message %d", msg.RoomID, msg.ID)
		}
		if jam.HostID == msg.SenderID {
			continue
		}
		var member models.JamMember
		err := db.Where("jam_id = ? AND user_id = ? AND status = ?",
			msg.RoomID, msg.SenderID, models.JamMemberStatusApproved).First(&member).Error
		if err != nil {
			t.Fatalf("jam message %d sent by non-member %d", msg.ID, msg.SenderID)
		}
	}
}
