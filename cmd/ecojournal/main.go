// Package main dumps the bridge's reading journal as JSON lines.
//
// Usage: ecojournal <journal.db> [device]
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/towet/wastemanagement/pkg/model"
	"github.com/towet/wastemanagement/pkg/store/sqlitestore"
)

const window = 24 * time.Hour

func main() {
	if len(os.Args) < 2 {
		log.Fatal("please provide the journal database file")
	}

	if _, err := os.Stat(os.Args[1]); err != nil {
		log.Fatal(err)
	}

	db, err := sqlitestore.New(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	until := time.Now()
	since := until.Add(-window)

	readingChan := make(chan model.Reading, 100)
	errChan := make(chan error, 1)
	go func() {
		errChan <- db.List(ctx, readingChan, since, until, os.Args[2:]...)
	}()

	enc := json.NewEncoder(os.Stdout)
	for reading := range readingChan {
		if err := enc.Encode(reading); err != nil {
			log.Fatal(err)
		}
	}

	if err := <-errChan; err != nil && err != sqlitestore.ErrListCancelled {
		log.Fatal(err)
	}
}
