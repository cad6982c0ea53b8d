// Command reindex rebuilds the snapshot catalog from the sample files on disk.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"camsampler/internal/config"
	"camsampler/internal/model"
	"camsampler/internal/repository/sqlite"
	"camsampler/internal/storage"
)

const reindexReason = "reindexed"

func main() {
	env := config.Load()
	camerasPath := flag.String("config", env.CamerasConfig, "Cameras YAML file")
	dbPath := flag.String("db", env.DatabasePath, "Database path")
	flag.Parse()

	cameras, err := config.NewCameraFile(*camerasPath).Load()
	if err != nil {
		log.Fatalf("Failed to load cameras: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewSnapshotRepository(db)

	fmt.Printf("Reindexing %d cameras into %s\n", len(cameras), *dbPath)

	total, skipped := 0, 0
	for _, cam := range cameras {
		snapshots, bad := scanCamera(cam, time.Local)
		skipped += bad
		if len(snapshots) == 0 {
			fmt.Printf("   - %s: no samples\n", cam.ID)
			continue
		}

		inserted, err := repo.InsertBatch(snapshots)
		if err != nil {
			log.Fatalf("Failed to insert samples of %s: %v", cam.ID, err)
		}
		total += inserted
		fmt.Printf("   - %s: %d found, %d new\n", cam.ID, len(snapshots), inserted)
	}

	fmt.Printf("✅ Added %d samples to the catalog\n", total)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid name or errors)\n", skipped)
	}

	if counts, err := repo.CountByCamera(); err == nil {
		fmt.Printf("\n📊 Catalog per camera:\n")
		for camera, n := range counts {
			fmt.Printf("      - %s: %d samples\n", camera, n)
		}
	}
}

// scanCamera collects catalog records for every sample below the camera's
// storage directory. It returns the number of files it could not parse.
func scanCamera(cam config.CameraConfig, loc *time.Location) ([]model.Snapshot, int) {
	var snapshots []model.Snapshot
	skipped := 0

	filepath.WalkDir(cam.StorageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == storage.LatestAlias {
			return nil
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(d.Name()), ".jpg") {
			return nil
		}

		name, ts, err := storage.ParseSampleFilename(d.Name(), loc)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", path, err)
			skipped++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", path, err)
			skipped++
			return nil
		}

		snapshots = append(snapshots, model.Snapshot{
			Camera:     cam.ID,
			CameraName: name,
			Filename:   d.Name(),
			FilePath:   path,
			Timestamp:  ts,
			FileSize:   info.Size(),
			Reason:     reindexReason,
		})
		return nil
	})

	return snapshots, skipped
}
