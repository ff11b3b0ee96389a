package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chordme/chordme/pkg/chordpro"
	"github.com/chordme/chordme/pkg/config"
	"github.com/chordme/chordme/pkg/permissions"
	"github.com/chordme/chordme/pkg/songs"
	"github.com/chordme/chordme/pkg/storage/postgres"
)

// chordme-import walks a directory of ChordPro files and loads them
// into the song store, owned by an existing user. Files that fail
// validation are skipped and reported, not imported broken.
func main() {
	dir := flag.String("dir", "", "Directory of .cho/.chordpro/.pro files to import")
	ownerEmail := flag.String("owner", "", "Email of the user who will own the imported songs")
	visibility := flag.String("visibility", "private", "Visibility for imported songs: private, public or link-shared")
	dryRun := flag.Bool("dry-run", false, "Parse and validate without writing to the database")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *dir == "" || *ownerEmail == "" {
		log.Fatal("Both -dir and -owner are required")
	}
	vis := permissions.Visibility(*visibility)
	if !vis.Valid() {
		log.Fatalf("Invalid visibility %q", *visibility)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.WithError(err).Fatal("Failed to ensure schema")
	}

	owner, err := postgres.NewUserStore(db).GetByEmail(ctx, *ownerEmail)
	if err != nil {
		if errors.Is(err, songs.ErrNotFound) {
			log.Fatalf("No user registered with email %s", *ownerEmail)
		}
		log.WithError(err).Fatal("Failed to look up owner")
	}

	store := postgres.NewSongStore(db)
	imported, skipped := 0, 0

	err = filepath.Walk(*dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isChordProFile(path) {
			return nil
		}

		fileLog := log.WithField("file", path)
		data, err := os.ReadFile(path)
		if err != nil {
			fileLog.WithError(err).Error("Failed to read file")
			skipped++
			return nil
		}
		content := string(data)

		result := chordpro.Validate(content)
		for _, issue := range result.Issues {
			fileLog.WithFields(logrus.Fields{
				"line":     issue.Line,
				"severity": issue.Severity,
			}).Debug(issue.Message)
		}
		if !result.Valid() {
			fileLog.Warnf("Skipping: %d validation issue(s)", len(result.Issues))
			skipped++
			return nil
		}

		doc := chordpro.Parse(content)
		title := doc.Title()
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		song := &songs.Song{
			Title:      title,
			Artist:     doc.Artist(),
			Content:    content,
			OwnerID:    owner.ID,
			Visibility: vis,
		}
		if err := song.Validate(); err != nil {
			fileLog.WithError(err).Warn("Skipping")
			skipped++
			return nil
		}

		if *dryRun {
			fileLog.WithField("title", title).Info("Would import")
			imported++
			return nil
		}
		if err := store.Create(ctx, song); err != nil {
			fileLog.WithError(err).Error("Failed to import")
			skipped++
			return nil
		}
		fileLog.WithFields(logrus.Fields{
			"title":   title,
			"song_id": song.ID,
		}).Info("Imported")
		imported++
		return nil
	})
	if err != nil {
		log.WithError(err).Fatal("Import walk failed")
	}

	log.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
		"dry_run":  *dryRun,
	}).Info("Import finished")
}

func isChordProFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cho", ".chordpro", ".pro", ".crd":
		return true
	default:
		return false
	}
}
