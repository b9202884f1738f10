// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"jammer/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumJams     int
	ShouldClean bool
	// SkipBcrypt stores a plaintext marker instead of hashing, for fast
	// re-seeding during development. Never use outside dev.
	SkipBcrypt bool
	// DryRun builds entities without writing them.
	DryRun bool
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db      *gorm.DB
	opts    Options
	catalog *Catalog
	rng     *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:      db,
		opts:    opts,
		catalog: catalog,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID:  1000,
	}, nil
}

// pickCity returns a random catalog city.
func (f *Factory) pickCity() CatalogCity {
	return f.catalog.Cities[f.rng.Intn(len(f.catalog.Cities))]
}

// pickSome returns up to n random distinct entries from the list.
func (f *Factory) pickSome(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	picked := make([]string, 0, n)
	for _, i := range f.rng.Perm(len(list))[:n] {
		picked = append(picked, list[i])
	}
	return picked
}

// jitter nudges a coordinate by up to ~0.15 degrees so seeded users and
// jams spread around their city instead of stacking on one point.
func (f *Factory) jitter(v float64) float64 {
	return v + (f.rng.Float64()-0.5)*0.3
}

// CreateUser constructs and persists a sample musician profile.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	city := f.pickCity()
	lat := f.jitter(city.Lat)
	lng := f.jitter(city.Lng)

	user := &models.User{
		Username:    gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:       gofakeit.Email(),
		DisplayName: gofakeit.Name(),
		Bio:         gofakeit.Sentence(10),
		City:        city.Name,
		Country:     city.Country,
		Lat:         &lat,
		Lng:         &lng,
		Instruments: f.pickSome(f.catalog.Instruments, 1+f.rng.Intn(3)),
		Genres:      f.pickSome(f.catalog.Genres, 1+f.rng.Intn(4)),
		AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}

	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.Username)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateJam constructs and persists a jam hosted by the given user, placed
// near the host's location when they have one.
func (f *Factory) CreateJam(host *models.User, overrides ...func(*models.Jam)) (*models.Jam, error) {
	city := f.pickCity()
	lat, lng := f.jitter(city.Lat), f.jitter(city.Lng)
	jamCity, jamCountry := city.Name, city.Country
	if host.HasCoordinates() {
		lat, lng = f.jitter(*host.Lat), f.jitter(*host.Lng)
		jamCity, jamCountry = host.City, host.Country
	}

	// Spread jams over the next 1..45 days
	daysAhead := 1 + f.rng.Intn(45)
	jamTime := time.Now().Add(time.Duration(daysAhead)*24*time.Hour +
		time.Duration(f.rng.Intn(12))*time.Hour)

	jam := &models.Jam{
		HostID:             host.ID,
		Title:              f.catalog.JamTitles[f.rng.Intn(len(f.catalog.JamTitles))],
		Description:        gofakeit.Paragraph(1, 2, 8, "\n"),
		JamTime:            jamTime,
		City:               jamCity,
		Country:            jamCountry,
		Lat:                &lat,
		Lng:                &lng,
		DesiredInstruments: f.pickSome(f.catalog.Instruments, 1+f.rng.Intn(3)),
		MaxAttendees:       []int{0, 4, 6, 8, 10}[f.rng.Intn(5)],
	}

	for _, override := range overrides {
		override(jam)
	}

	if f.opts.DryRun {
		f.nextID++
		jam.ID = f.nextID
		log.Printf("[dry-run] CreateJam: %s @ %s", jam.Title, jam.City)
		return jam, nil
	}
	if err := f.db.Create(jam).Error; err != nil {
		return nil, err
	}
	return jam, nil
}

// CreateConnection persists a connection edge between two users.
func (f *Factory) CreateConnection(requester, receiver *models.User, status models.ConnectionStatus) (*models.Connection, error) {
	edge := &models.Connection{
		RequesterID: requester.ID,
		ReceiverID:  receiver.ID,
		Status:      status,
	}
	if status == models.ConnectionStatusConnected {
		now := time.Now()
		edge.ResolvedAt = &now
	}

	if f.opts.DryRun {
		f.nextID++
		edge.ID = f.nextID
		return edge, nil
	}
	if err := f.db.Create(edge).Error; err != nil {
		return nil, err
	}
	return edge, nil
}

// CreateDM persists a DM channel for a connected pair, ordered canonically.
func (f *Factory) CreateDM(a, b *models.User) (*models.DM, error) {
	aID, bID := models.CanonicalPair(a.ID, b.ID)
	dm := &models.DM{UserAID: aID, UserBID: bID}

	if f.opts.DryRun {
		f.nextID++
		dm.ID = f.nextID
		return dm, nil
	}
	if err := f.db.Create(dm).Error; err != nil {
		return nil, err
	}
	return dm, nil
}

// CreateDMMessage persists a message in a DM with a created_at spread over
// the past maxDays days.
func (f *Factory) CreateDMMessage(dm *models.DM, senderID uint, maxDays int) (*models.Message, error) {
	if maxDays <= 0 {
		maxDays = 14
	}
	msg := &models.Message{
		RoomType: models.RoomTypeDM,
		RoomID:   dm.ID,
		SenderID: senderID,
		Content:  gofakeit.Sentence(4 + f.rng.Intn(10)),
	}
	msg.CreatedAt = time.Now().Add(-time.Duration(f.rng.Intn(maxDays*24)) * time.Hour)

	if f.opts.DryRun {
		f.nextID++
		msg.ID = f.nextID
		return msg, nil
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateJamMember persists a join request row for a jam.
func (f *Factory) CreateJamMember(jam *models.Jam, user *models.User, status models.JamMemberStatus) (*models.JamMember, error) {
	member := &models.JamMember{
		JamID:  jam.ID,
		UserID: user.ID,
		Role:   models.JamMemberRoleAttendee,
		Status: status,
	}

	if f.opts.DryRun {
		return member, nil
	}
	if err := f.db.Create(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

// CreateJamChatMessage persists a message in a jam room.
func (f *Factory) CreateJamChatMessage(jam *models.Jam, senderID uint) (*models.Message, error) {
	msg := &models.Message{
		RoomType: models.RoomTypeJam,
		RoomID:   jam.ID,
		SenderID: senderID,
		Content:  gofakeit.Sentence(3 + f.rng.Intn(8)),
	}

	if f.opts.DryRun {
		f.nextID++
		msg.ID = f.nextID
		return msg, nil
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}
