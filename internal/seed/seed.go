package seed

import (
	"fmt"
	"log"
	"time"

	"jammer/internal/models"

	"gorm.io/gorm"
)

// Seeder builds a realistic development dataset: musicians with locations,
// a mesh of connections, DM history with read watermarks, and upcoming jams
// with join requests and chat traffic.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder with the given options.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	factory, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, factory: factory, opts: opts}, nil
}

// ClearAll removes all seedable data. Order matters because of foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	tables := []string{"messages", "jam_members", "jams", "dms", "connections", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Run populates the database.
func (s *Seeder) Run() error {
	log.Printf("Seeding %d users and %d jams...", s.opts.NumUsers, s.opts.NumJams)

	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			log.Printf("Warning: could not clear all existing data: %v", err)
		}
	}

	users, err := s.seedUsers()
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("Created %d users", len(users))

	connected, err := s.seedConnections(users)
	if err != nil {
		return fmt.Errorf("failed to create connections: %w", err)
	}
	log.Printf("Created %d connections", len(connected))

	dms, err := s.seedDMs(connected)
	if err != nil {
		return fmt.Errorf("failed to create DMs: %w", err)
	}
	log.Printf("Created %d DM channels with history", len(dms))

	jams, err := s.seedJams(users)
	if err != nil {
		return fmt.Errorf("failed to create jams: %w", err)
	}
	log.Printf("Created %d jams with members", len(jams))

	log.Println("Seeding complete")
	return nil
}

func (s *Seeder) seedUsers() ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers)

	// A predictable login for manual testing
	admin, err := s.factory.CreateUser(func(u *models.User) {
		u.Username = "admin"
		u.Email = "admin@jammer.dev"
		u.DisplayName = "Jammer Admin"
		u.IsAdmin = true
	})
	if err != nil {
		return nil, err
	}
	users = append(users, admin)

	for i := 1; i < s.opts.NumUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// connectedPair is an accepted connection used to derive DM channels.
type connectedPair struct {
	a, b *models.User
}

// seedConnections links each user to a handful of others. Roughly three out
// of four edges are accepted, the rest stay pending so the requests inbox
// has content.
func (s *Seeder) seedConnections(users []*models.User) ([]connectedPair, error) {
	var connected []connectedPair
	seen := make(map[[2]uint]bool)

	for _, user := range users {
		wanted := 2 + s.factory.rng.Intn(4)
		for n := 0; n < wanted; n++ {
			other := users[s.factory.rng.Intn(len(users))]
			if other.ID == user.ID {
				continue
			}
			aID, bID := models.CanonicalPair(user.ID, other.ID)
			key := [2]uint{aID, bID}
			if seen[key] {
				continue
			}
			seen[key] = true

			status := models.ConnectionStatusConnected
			if s.factory.rng.Intn(4) == 0 {
				status = models.ConnectionStatusPending
			}
			if _, err := s.factory.CreateConnection(user, other, status); err != nil {
				return nil, err
			}
			if status == models.ConnectionStatusConnected {
				connected = append(connected, connectedPair{a: user, b: other})
			}
		}
	}
	return connected, nil
}

// seedDMs opens a DM for most connected pairs, writes a short back-and-forth
// history, and leaves some channels partially unread by backdating one
// participant's watermark.
func (s *Seeder) seedDMs(pairs []connectedPair) ([]*models.DM, error) {
	var dms []*models.DM
	for _, pair := range pairs {
		if s.factory.rng.Intn(5) == 0 {
			continue // some connections never start talking
		}
		dm, err := s.factory.CreateDM(pair.a, pair.b)
		if err != nil {
			return nil, err
		}
		dms = append(dms, dm)

		count := 2 + s.factory.rng.Intn(12)
		for m := 0; m < count; m++ {
			sender := pair.a.ID
			if m%2 == 1 {
				sender = pair.b.ID
			}
			if _, err := s.factory.CreateDMMessage(dm, sender, 14); err != nil {
				return nil, err
			}
		}

		if s.opts.DryRun {
			continue
		}

		// One side read everything, the other is a few days behind
		now := time.Now()
		behind := now.Add(-time.Duration(2+s.factory.rng.Intn(5)) * 24 * time.Hour)
		if err := s.db.Model(dm).Updates(map[string]interface{}{
			"user_a_last_read_at": now,
			"user_b_last_read_at": behind,
		}).Error; err != nil {
			return nil, err
		}
	}
	return dms, nil
}

// seedJams creates upcoming jams, join requests in every lifecycle state,
// and chat traffic between hosts and approved members.
func (s *Seeder) seedJams(users []*models.User) ([]*models.Jam, error) {
	var jams []*models.Jam
	for i := 0; i < s.opts.NumJams; i++ {
		host := users[s.factory.rng.Intn(len(users))]
		jam, err := s.factory.CreateJam(host)
		if err != nil {
			return nil, err
		}
		jams = append(jams, jam)

		statuses := []models.JamMemberStatus{
			models.JamMemberStatusApproved,
			models.JamMemberStatusApproved,
			models.JamMemberStatusPending,
			models.JamMemberStatusDeclined,
		}
		memberSeen := map[uint]bool{host.ID: true}
		var approved []*models.User
		wanted := 1 + s.factory.rng.Intn(len(statuses))
		for n := 0; n < wanted; n++ {
			member := users[s.factory.rng.Intn(len(users))]
			if memberSeen[member.ID] {
				continue
			}
			memberSeen[member.ID] = true

			status := statuses[s.factory.rng.Intn(len(statuses))]
			if _, err := s.factory.CreateJamMember(jam, member, status); err != nil {
				return nil, err
			}
			if status == models.JamMemberStatusApproved {
				approved = append(approved, member)
			}
		}

		// Host plus approved members chat in the jam room
		chatters := append([]*models.User{host}, approved...)
		count := s.factory.rng.Intn(8)
		for m := 0; m < count; m++ {
			sender := chatters[s.factory.rng.Intn(len(chatters))]
			if _, err := s.factory.CreateJamChatMessage(jam, sender.ID); err != nil {
				return nil, err
			}
		}
	}
	return jams, nil
}
