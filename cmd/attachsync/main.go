// Command attachsync runs the attachment sync engine against an
// S3-compatible remote store. The desired set is read from a watched_items
// table in the same local database, so rows inserted there (for example by a
// host application's own sync layer) drive downloads, and rows removed drive
// archival.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/attachsync/config"
	"github.com/dmitrijs2005/attachsync/logging"
	"github.com/dmitrijs2005/attachsync/models"
	"github.com/dmitrijs2005/attachsync/queue"
	s3remote "github.com/dmitrijs2005/attachsync/remote/s3"
	"github.com/dmitrijs2005/attachsync/repositories/records"
	"github.com/dmitrijs2005/attachsync/services"
)

const watchPollInterval = time.Second

func main() {
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := records.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := ensureWatchedItemsTable(ctx, db); err != nil {
		log.Fatalf("failed to create watched_items table: %v", err)
	}

	remoteStorage, err := s3remote.New(ctx, s3remote.Config{
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		Prefix:       cfg.S3Prefix,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		log.Fatalf("failed to build remote storage: %v", err)
	}

	items := watchItems(ctx, db, logger)
	connectivity := probeConnectivity(ctx, cfg.ProbeAddr, cfg.ProbeInterval)

	q, err := queue.New(queue.Config{
		DB:           db,
		Remote:       remoteStorage,
		Logger:       logger,
		Directory:    cfg.AttachmentsDir,
		WatchedItems: items,
		Connectivity: connectivity,
		Sync: services.SyncOptions{
			Period:             cfg.SyncInterval,
			Throttle:           cfg.SyncThrottle,
			ArchivedCacheLimit: cfg.CacheLimit,
		},
	})
	if err != nil {
		log.Fatalf("failed to build queue: %v", err)
	}

	if err := q.Start(ctx); err != nil {
		log.Fatalf("failed to start queue: %v", err)
	}
	logger.Info(ctx, "attachment queue started", "db", cfg.DBPath, "dir", cfg.AttachmentsDir)

	<-ctx.Done()
	if err := q.Close(); err != nil {
		log.Printf("error closing queue: %v", err)
	}
}

func ensureWatchedItemsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS watched_items (
		id TEXT PRIMARY KEY,
		file_extension TEXT,
		filename TEXT
	)`)
	return err
}

// watchItems polls the watched_items table and emits the full desired set
// whenever it changes.
func watchItems(ctx context.Context, db *sql.DB, logger logging.Logger) <-chan []models.WatchedAttachmentItem {
	ch := make(chan []models.WatchedAttachmentItem, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(watchPollInterval)
		defer ticker.Stop()

		var last string
		first := true

		for {
			items, key, err := loadWatchedItems(ctx, db)
			if err != nil {
				logger.Error(ctx, "failed to load watched items", "error", err)
			} else if first || key != last {
				first = false
				last = key
				select {
				case ch <- items:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}

func loadWatchedItems(ctx context.Context, db *sql.DB) ([]models.WatchedAttachmentItem, string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, COALESCE(file_extension, ''), COALESCE(filename, '') FROM watched_items ORDER BY id`)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var items []models.WatchedAttachmentItem
	key := ""
	for rows.Next() {
		var item models.WatchedAttachmentItem
		if err := rows.Scan(&item.ID, &item.FileExtension, &item.Filename); err != nil {
			return nil, "", err
		}
		items = append(items, item)
		key += item.ID + "|" + item.FileExtension + "|" + item.Filename + "\n"
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	return items, key, nil
}

// probeConnectivity dials addr periodically and reports transitions. Returns
// nil when probing is disabled.
func probeConnectivity(ctx context.Context, addr string, interval time.Duration) <-chan bool {
	if addr == "" {
		return nil
	}

	ch := make(chan bool, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
			online := err == nil
			if online {
				_ = conn.Close()
			}
			select {
			case ch <- online:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}
