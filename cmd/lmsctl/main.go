// Command lmsctl loads course content and user accounts into the portal database.
//
//	lmsctl seed  -file content.yaml
//	lmsctl users -file users.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend/authbus"
	"github.com/mind-engage/engineering-lms/internal/backend/sqlbackend"
	"github.com/mind-engage/engineering-lms/internal/config"
	"github.com/mind-engage/engineering-lms/internal/db"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/seed"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lmsctl <seed|users> -file PATH")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	file := fs.String("file", "", "input file (- for stdin)")
	_ = fs.Parse(os.Args[2:])
	if *file == "" {
		usage()
	}

	cfg := config.FromEnv()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal("bad DB_DRIVER", "error", err)
	}
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", "error", err)
	}
	defer dbh.Close()

	// Running portals learn about role changes through the shared bus.
	var bus authbus.Bus = authbus.NewMemory(log)
	if cfg.RedisAddr != "" {
		rbus, err := authbus.NewRedis(ctx, log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Fatal("redis auth bus", "addr", cfg.RedisAddr, "error", err)
		}
		bus = rbus
	}
	defer bus.Close()

	svc := sqlbackend.New(dbh, bus, log, sqlbackend.Options{Secret: cfg.AuthHMACSecret})
	im := seed.NewImporter(dbh, svc, log)

	in, err := openInput(*file)
	if err != nil {
		log.Fatal("open input", "file", *file, "error", err)
	}
	defer in.Close()

	switch cmd {
	case "seed":
		content, err := seed.LoadContent(in)
		if err != nil {
			log.Fatal("parse content", "file", *file, "error", err)
		}
		res, err := im.ApplyContent(ctx, content)
		if err != nil {
			log.Fatal("apply content", "error", err)
		}
		log.Info("content applied", "result", res)
	case "users":
		res, err := im.ImportUsersCSV(ctx, in)
		if err != nil {
			log.Fatal("import users", "error", err)
		}
		log.Info("users imported", "inserted", res.Inserted, "updated", res.Updated)
	default:
		usage()
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
