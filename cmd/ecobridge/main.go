// Package main is the serial-to-backend ingest bridge.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/towet/wastemanagement/pkg/bridge"
	"github.com/towet/wastemanagement/pkg/config"
	"github.com/towet/wastemanagement/pkg/logging"
	"github.com/towet/wastemanagement/pkg/mirror"
	"github.com/towet/wastemanagement/pkg/store"
	"github.com/towet/wastemanagement/pkg/store/pgstore"
	"github.com/towet/wastemanagement/pkg/store/sqlitestore"
	"github.com/towet/wastemanagement/pkg/store/supabasestore"
)

const envFile = ".env"

func main() {
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format, "ecobridge")
	slog.SetDefault(logger)

	db, journal, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if journal == nil && cfg.JournalPath != "" {
		j, err := sqlitestore.New(cfg.JournalPath)
		if err != nil {
			log.Fatal(err)
		}
		defer j.Close()
		journal = j
	}

	mirrors, err := openMirrors(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer mirrors.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bridge.New(bridge.Config{
		Store:    db,
		BaudRate: cfg.Bridge.BaudRate,
		Delays: bridge.Delays{
			Settings: cfg.Bridge.SettingsRetry,
			Open:     cfg.Bridge.OpenRetry,
			Error:    cfg.Bridge.ErrorRetry,
			Close:    cfg.Bridge.CloseRetry,
		},
		Threshold: cfg.Bridge.Threshold,
		Journal:   journal,
		Mirror:    mirrors,
		Logger:    logger,
	})

	slog.Info("starting bridge", "backend", cfg.Backend, "journal", journal != nil, "mirrors", len(mirrors))
	b.Run(ctx)
	slog.Info("bridge stopped")
}

// openStore returns the configured backend. The sqlite backend doubles as the
// journal.
func openStore(cfg *config.Config) (store.Store, store.Journal, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := pgstore.New(pgstore.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MaxIdle:  cfg.Database.MaxIdle,
		})
		return db, nil, err

	case config.BackendSQLite:
		db, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil

	default:
		return supabasestore.New(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Timeout), nil, nil
	}
}

func openMirrors(cfg *config.Config) (mirror.Multi, error) {
	var mirrors mirror.Multi

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			// the stream is best effort, go-redis reconnects on its own
			slog.Warn("redis not reachable", "addr", cfg.Redis.Addr, "err", err)
		}
		mirrors = append(mirrors, mirror.NewRedisStream(client, cfg.Redis.Stream, cfg.Redis.MaxLen))
	}

	if cfg.MQTT.Enabled {
		m, err := mirror.DialMQTT(mirror.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			Retained: cfg.MQTT.Retained,
		})
		if err != nil {
			mirrors.Close()
			return nil, err
		}
		mirrors = append(mirrors, m)
	}

	return mirrors, nil
}
