package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/creastat/records"
	"pkt.systems/pslog"
)

const (
	defaultStoreName       = "records"
	defaultRedisAddr       = "127.0.0.1:6379"
	defaultShutdownTimeout = 30 * time.Second
)

// settings is the resolved command line, environment and config file.
type settings struct {
	Coordination      string
	Durable           string
	RedisAddr         string
	Store             string
	Scope             string
	Users             int
	ReconcileInterval time.Duration
	LockTTL           time.Duration
	LogLevel          string
	MetricsListen     string
	ShutdownTimeout   time.Duration

	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string

	QdrantURL        string
	QdrantKey        string
	QdrantCollection string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3Insecure  bool
	S3PathStyle bool
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "recordctl",
		Short:         "recordctl reads, writes and hosts lock-protected records",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Read a record kept in redis
  recordctl --durable redis --coordination redis --redis-addr localhost:6379 get p1

  # Write a record to S3-compatible storage, locking through redis
  RECORDS_S3_BUCKET=records RECORDS_S3_ENDPOINT=localhost:9000 RECORDS_S3_INSECURE=true \
    recordctl --durable s3 --coordination redis put p1 '{"score":10}'

  # Host a store with metrics on :9464
  recordctl --metrics-listen :9464 serve
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(v.GetString("config"))
			if path == "" {
				return nil
			}
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %q: %w", path, err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to a config file (yaml, json or toml)")
	flags.String("coordination", "memory", "coordination store (memory, redis)")
	flags.String("durable", "memory", "durable store (memory, redis, supabase, qdrant, s3)")
	flags.String("redis-addr", defaultRedisAddr, "redis address for the redis drivers")
	flags.String("store", defaultStoreName, "record store name")
	flags.String("scope", "", "optional record store scope")
	flags.Int("users", 0, "concurrent users feeding the request throttle")
	flags.Duration("reconcile-interval", records.DefaultReconcileInterval, "background flush and lock refresh period")
	flags.Duration("lock-ttl", records.DefaultLockTTL, "lock expiry without refresh")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.Duration("shutdown-timeout", defaultShutdownTimeout, "how long the shutdown drain may take")
	flags.String("supabase-url", "", "supabase project URL")
	flags.String("supabase-key", "", "supabase API key")
	flags.String("supabase-table", "", "supabase table holding records")
	flags.String("qdrant-url", "", "qdrant endpoint URL")
	flags.String("qdrant-key", "", "qdrant API key")
	flags.String("qdrant-collection", "records", "qdrant collection holding records")
	flags.String("s3-endpoint", "", "S3 endpoint (empty for AWS)")
	flags.String("s3-region", "", "S3 region")
	flags.String("s3-bucket", "", "S3 bucket")
	flags.String("s3-prefix", "", "S3 object prefix")
	flags.Bool("s3-insecure", false, "use plain HTTP for S3")
	flags.Bool("s3-path-style", false, "force path-style S3 addressing")

	v.SetEnvPrefix("RECORDS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err)
		}
	})

	cmd.AddCommand(
		newGetCommand(baseLogger, v),
		newPutCommand(baseLogger, v),
		newOwnerCommand(baseLogger, v),
		newServeCommand(baseLogger, v),
	)
	return cmd
}

func bindSettings(v *viper.Viper) (settings, error) {
	s := settings{
		Coordination:      strings.ToLower(strings.TrimSpace(v.GetString("coordination"))),
		Durable:           strings.ToLower(strings.TrimSpace(v.GetString("durable"))),
		RedisAddr:         v.GetString("redis-addr"),
		Store:             v.GetString("store"),
		Scope:             v.GetString("scope"),
		Users:             v.GetInt("users"),
		ReconcileInterval: v.GetDuration("reconcile-interval"),
		LockTTL:           v.GetDuration("lock-ttl"),
		LogLevel:          strings.TrimSpace(v.GetString("log-level")),
		MetricsListen:     v.GetString("metrics-listen"),
		ShutdownTimeout:   v.GetDuration("shutdown-timeout"),
		SupabaseURL:       v.GetString("supabase-url"),
		SupabaseKey:       v.GetString("supabase-key"),
		SupabaseTable:     v.GetString("supabase-table"),
		QdrantURL:         v.GetString("qdrant-url"),
		QdrantKey:         v.GetString("qdrant-key"),
		QdrantCollection:  v.GetString("qdrant-collection"),
		S3Endpoint:        v.GetString("s3-endpoint"),
		S3Region:          v.GetString("s3-region"),
		S3Bucket:          v.GetString("s3-bucket"),
		S3Prefix:          v.GetString("s3-prefix"),
		S3Insecure:        v.GetBool("s3-insecure"),
		S3PathStyle:       v.GetBool("s3-path-style"),
	}
	if s.Store == "" {
		return s, fmt.Errorf("--store must not be empty")
	}
	if s.Users < 0 {
		return s, fmt.Errorf("--users must be >= 0")
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
	return s, nil
}

// withLevel applies --log-level on top of the environment configured logger.
func withLevel(logger pslog.Logger, level string) pslog.Logger {
	if level == "" {
		return logger
	}
	if parsed, ok := pslog.ParseLevel(level); ok {
		return logger.LogLevel(parsed)
	}
	return logger
}
