package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/database"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// Simplified config loading for the script
func loadConfig() (dbName, primaryURL, authToken string) {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}
	dbName, ok := os.LookupEnv("DB_NAME")
	if !ok {
		log.Fatal("Error: Required environment variable DB_NAME is not set.")
	}
	return dbName, os.Getenv("TURSO_PRIMARY_URL"), os.Getenv("TURSO_AUTH_TOKEN")
}

// eveningSlots are the half hours most teams pick from.
var eveningSlots = []int{36, 37, 38, 39, 40, 41, 42, 43}

func main() {
	numTeams := flag.Int("teams", 8, "number of teams to create")
	numWeeks := flag.Int("weeks", 2, "number of weeks of availability, starting with the current one")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	log.Info("Starting database seeder...", "teams", *numTeams, "weeks", *numWeeks, "seed", *seed)
	dbName, primaryURL, authToken := loadConfig()

	db, teardown, err := database.InitDB(dbName, primaryURL, authToken)
	if err != nil {
		log.Fatalf("Failed to open database: %s", err)
	}
	defer teardown()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(*seed))
	teams := team.New(db, team.DefaultRosterSize)
	avail := availability.New(db)

	divisions := []string{"gold", "silver"}
	week := slot.WeekOf(time.Now())
	startTime := time.Now()
	changes := 0

	for i := 0; i < *numTeams; i++ {
		t := &team.Team{
			ID:        fmt.Sprintf("seed-team-%d", i+1),
			Tag:       fmt.Sprintf("S%02d", i+1),
			Name:      fmt.Sprintf("Seeded Team %d", i+1),
			Divisions: []string{divisions[i%len(divisions)]},
		}
		for p := 0; p < team.DefaultRosterSize+1; p++ {
			userID := fmt.Sprintf("%s-player-%d", t.ID, p+1)
			t.Roster = append(t.Roster, team.Player{
				UserID:      userID,
				DisplayName: fmt.Sprintf("Player %c%d", 'A'+rune(i%26), p+1),
				Initials:    fmt.Sprintf("%c%d", 'A'+rune(i%26), p+1),
			})
		}
		t.SchedulerIDs = []string{t.Roster[0].UserID}
		if err := teams.UpsertTeam(ctx, t); err != nil {
			log.Fatalf("Failed to upsert team %s: %s", t.ID, err)
		}

		for wk, w := 0, week; wk < *numWeeks; wk, w = wk+1, w.Next() {
			for _, player := range t.Roster {
				change := availability.Change{
					TeamID: t.ID,
					Week:   w,
					UserID: player.UserID,
					State:  availability.StateAvailable,
					Slots:  randomSlots(rng),
				}
				if _, err := avail.Apply(ctx, change); err != nil {
					log.Fatalf("Failed to write availability for %s: %s", player.UserID, err)
				}
				changes++
			}
		}
		log.Info("Seeded team", "team", t.ID, "division", t.Divisions[0])
	}

	log.Info("Successfully seeded availability.", "changes", changes, "duration", time.Since(startTime))
}

// randomSlots picks a few evenings and a run of slots on each.
func randomSlots(rng *rand.Rand) []slot.ID {
	var ids []slot.ID
	for day := time.Sunday; day <= time.Saturday; day++ {
		if rng.Intn(2) == 0 {
			continue
		}
		start := rng.Intn(len(eveningSlots) - 2)
		length := 2 + rng.Intn(len(eveningSlots)-start-1)
		for _, hh := range eveningSlots[start : start+length] {
			ids = append(ids, slot.ID{Day: day, HalfHour: hh})
		}
	}
	return ids
}
