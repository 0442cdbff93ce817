package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gobiodiv/adapters/postgres"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Applies the schema and optionally imports result bundles written by
// `gobiodiv analyze --json`.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [results_dir]")
	}

	databaseURL := os.Args[1]
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if len(os.Args) < 3 {
		return
	}

	resultsDir := os.Args[2]
	files, err := findResultFiles(resultsDir)
	if err != nil {
		log.Fatalf("Failed to find result files: %v", err)
	}
	log.Printf("Found %d result files to import", len(files))

	repo := postgres.NewResultRepository(db)
	imported, skipped := 0, 0
	for _, file := range files {
		bundle, err := loadBundle(file)
		if err != nil {
			log.Printf("Failed to load result from %s: %v", file, err)
			skipped++
			continue
		}

		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if err := repo.Save(ctx, name, bundle); err != nil {
			log.Printf("Failed to save run %s: %v", bundle.RunID(), err)
			skipped++
			continue
		}

		imported++
		log.Printf("Imported run %s from %s", bundle.RunID(), filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findResultFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func loadBundle(filePath string) (*stats.ResultBundle, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var bundle stats.ResultBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, err
	}
	if bundle.RunID().IsEmpty() {
		return nil, os.ErrInvalid
	}

	return &bundle, nil
}
