package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/service"
	"github.com/wkalt/newsledger/session"
	"github.com/wkalt/newsledger/storage"
	"github.com/wkalt/newsledger/util/log"
)

var (
	serverPort           int
	serverLogLevel       string
	serverLogFormat      string
	serverDBPath         string
	serverSnapshotPath   string
	serverShardCacheSize int
	serverPprofAddr      string
	allowedOrigins       []string

	// Archival options
	serverThreshold   int
	serverBatchSize   int
	serverRetention   int
	serverCeiling     int
	serverInterval    time.Duration
	serverQueueBound  int
	serverIdleTimeout time.Duration

	// Directory storage provider options
	serverDataDir string

	// S3 storage provider options
	serverS3Endpoint  string
	serverS3AccessKey string
	serverS3SecretKey string
	serverS3Bucket    string
	serverS3UseTLS    bool
	serverS3Region    string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the newsledger server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		level, err := log.ParseLevel(serverLogLevel)
		if err != nil {
			bailf("%s", err)
		}
		if err := log.Setup(os.Stderr, level, serverLogFormat); err != nil {
			bailf("%s", err)
		}
		s3requested := serverS3Endpoint != "" ||
			serverS3AccessKey != "" ||
			serverS3SecretKey != "" ||
			serverS3Bucket != ""
		if serverDataDir != "" && s3requested {
			bailf("cannot specify both --data-dir and S3 options")
		}
		if serverDataDir == "" && !s3requested {
			bailf("must specify either --data-dir or S3 options")
		}
		if err := checkArchivalLimits(serverCeiling, serverThreshold, serverRetention); err != nil {
			bailf("%s", err)
		}

		var store storage.Provider
		if serverDataDir == "" {
			mc, err := minio.New(serverS3Endpoint, &minio.Options{
				Creds:  credentials.NewStaticV4(serverS3AccessKey, serverS3SecretKey, ""),
				Secure: serverS3UseTLS,
				Region: serverS3Region,
			})
			if err != nil {
				bailf("error creating S3 client: %s", err)
			}
			s3 := storage.NewS3Store(mc, serverS3Bucket)
			if err := s3.EnsureBucket(ctx, serverS3Region); err != nil {
				bailf("error preparing bucket: %s", err)
			}
			store = s3
		} else {
			store, err = storage.NewDirectoryStore(serverDataDir)
			if err != nil {
				bailf("error creating directory store: %s", err)
			}
		}
		opts := []service.Option{
			service.WithPort(serverPort),
			service.WithStorageProvider(store),
			service.WithDatabasePath(serverDBPath),
			service.WithSnapshotPath(serverSnapshotPath),
			service.WithShardCacheSize(serverShardCacheSize),
			service.WithSharedKey(sharedKey),
			service.WithPprofAddr(serverPprofAddr),
			service.WithLedgerOpts(
				ledger.WithBufferOpts(hotbuf.WithCeiling(serverCeiling)),
				ledger.WithSchedulerOpts(
					scheduler.WithThreshold(serverThreshold),
					scheduler.WithBatchSize(serverBatchSize),
					scheduler.WithRetention(serverRetention),
					scheduler.WithInterval(serverInterval),
				),
				ledger.WithSessionOpts(
					session.WithQueueBound(serverQueueBound),
					session.WithIdleTimeout(serverIdleTimeout),
				),
			),
		}
		if len(allowedOrigins) > 0 {
			opts = append(opts, service.WithAllowedOrigins(allowedOrigins))
		}
		if err := service.NewService().Start(ctx, opts...); err != nil {
			bailf("Shutdown error: %s", err)
		}
	},
}

// checkArchivalLimits rejects a hard ceiling that scheduled archival can never
// keep the hot buffer under.
func checkArchivalLimits(ceiling, threshold, retention int) error {
	if ceiling == 0 {
		return nil
	}
	if ceiling <= threshold {
		return fmt.Errorf("--ceiling (%d) must exceed --archive-threshold (%d)", ceiling, threshold)
	}
	if ceiling <= retention {
		return fmt.Errorf("--ceiling (%d) must exceed --retention (%d)", ceiling, retention)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 8089, "Port to listen on")
	serverCmd.PersistentFlags().StringVarP(&serverDataDir, "data-dir", "d", "", "Data directory (for directory storage)")
	serverCmd.PersistentFlags().StringVarP(&serverDBPath, "db-path", "", "newsledger.db", "archive directory database location")
	serverCmd.PersistentFlags().StringVarP(&serverSnapshotPath, "snapshot-path", "", "newsledger.snapshot", "hot tier snapshot location")
	serverCmd.PersistentFlags().IntVarP(&serverShardCacheSize, "shard-cache", "c", 64, "Number of decoded shards to cache")
	serverCmd.PersistentFlags().StringVarP(&serverLogLevel, "log-level", "l", "info", "Log level")
	serverCmd.PersistentFlags().StringVarP(&serverLogFormat, "log-format", "", "text", "Log format (text or json)")
	serverCmd.PersistentFlags().StringVarP(&serverPprofAddr, "pprof-addr", "", "", "pprof listen address (disabled if empty)")

	serverCmd.PersistentFlags().StringSliceVarP(&allowedOrigins, "allowed-origins", "o", []string{}, "Allowed origins")

	serverCmd.PersistentFlags().IntVar(&serverThreshold, "archive-threshold", 10000, "Hot buffer size that triggers archival")
	serverCmd.PersistentFlags().IntVar(&serverBatchSize, "archive-batch", 0, "Maximum records per archival run (0 for no limit)")
	serverCmd.PersistentFlags().IntVar(&serverRetention, "retention", 1000, "Newest records always kept in the hot buffer")
	serverCmd.PersistentFlags().IntVar(&serverCeiling, "ceiling", 100000, "Hard hot buffer limit (0 for unbounded)")
	serverCmd.PersistentFlags().DurationVar(&serverInterval, "archive-interval", 30*time.Second, "Archival check interval")
	serverCmd.PersistentFlags().IntVar(&serverQueueBound, "session-queue", 256, "Per-session notification queue bound")
	serverCmd.PersistentFlags().DurationVar(&serverIdleTimeout, "session-idle-timeout", 10*time.Minute, "Idle session timeout (0 disables)")

	serverCmd.PersistentFlags().StringVar(&serverS3Endpoint, "s3-endpoint", "", "S3 endpoint (for S3 storage)")
	serverCmd.PersistentFlags().StringVar(&serverS3AccessKey, "s3-access-key-id", "", "S3 access key ID (for S3 storage)")
	serverCmd.PersistentFlags().StringVar(&serverS3SecretKey, "s3-secret-key", "", "S3 secret key (for S3 storage)")
	serverCmd.PersistentFlags().StringVar(&serverS3Bucket, "s3-bucket", "", "S3 bucket (for S3 storage)")
	serverCmd.PersistentFlags().BoolVarP(&serverS3UseTLS, "s3-tls", "t", false, "Use TLS (for S3 storage)")
	serverCmd.PersistentFlags().StringVar(&serverS3Region, "s3-region", "", "S3 region")
}
