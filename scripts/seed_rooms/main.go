// Command seed_rooms populates the rooms table for local development and
// load testing. Existing rooms are left untouched.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	var (
		dsn       string
		buildings int
		floors    int
		perFloor  int
		capacity  int
	)

	flag.StringVar(&dsn, "dsn", "host=localhost port=5432 user=postgres password=postgres dbname=roombook sslmode=disable", "PostgreSQL DSN")
	flag.IntVar(&buildings, "buildings", 2, "Number of buildings")
	flag.IntVar(&floors, "floors", 3, "Floors per building")
	flag.IntVar(&perFloor, "per-floor", 8, "Rooms per floor")
	flag.IntVar(&capacity, "capacity", 12, "Default room capacity")
	flag.Parse()

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	const query = `INSERT INTO rooms (room_number, building_number, capacity, status, updated_at)
VALUES ($1, $2, $3, 'available', $4)
ON CONFLICT (room_number, building_number) DO NOTHING`

	now := time.Now().UTC()
	inserted := 0
	for building := 1; building <= buildings; building++ {
		for floor := 1; floor <= floors; floor++ {
			for room := 1; room <= perFloor; room++ {
				roomNumber := fmt.Sprintf("%d%02d", floor, room)
				res, err := db.Exec(query, roomNumber, building, capacity, now)
				if err != nil {
					log.Fatalf("failed to insert room %s/%d: %v", roomNumber, building, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					inserted++
				}
			}
		}
	}

	log.Printf("seeded %d rooms across %d buildings", inserted, buildings)
}
