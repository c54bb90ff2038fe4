package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/attachsync/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-f string   local database file (default from Config)
//	-d string   attachments directory (default from Config)
//	-i int      periodic sync interval in seconds (default from Config)
//	-e string   S3-compatible endpoint
//	-b string   S3 bucket
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-f", "-d", "-i", "-e", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DBPath, "f", cfg.DBPath, "local database file")
	fs.StringVar(&cfg.AttachmentsDir, "d", cfg.AttachmentsDir, "attachments directory")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3-compatible endpoint")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
