// Command main runs the database seeder for Jammer.
package main

import (
	"flag"
	"log"

	"jammer/internal/config"
	"jammer/internal/database"
	"jammer/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numJams := flag.Int("jams", 40, "Number of jams to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("fast", false, "Skip bcrypt hashing (dev only)")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d jams, clean=%v", *numUsers, *numJams, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	seeder, err := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumJams:     *numJams,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *skipBcrypt,
		DryRun:      *dryRun,
	})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	if err := seeder.Run(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
