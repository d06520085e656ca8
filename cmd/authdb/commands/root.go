package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/authdb"
	"github.com/MrEthical07/authdb/cmd/authdb/config"
)

// app is the state shared by every subcommand once the root pre-run has
// opened the DB.
type app struct {
	v          *viper.Viper
	configPath string

	log *logrus.Logger
	rdb redis.UniversalClient
	db  *authdb.DB
}

// Execute runs the CLI and releases the DB and redis client even when a
// subcommand fails.
func Execute() error {
	a := &app{v: config.New()}
	defer a.close()
	return newRootCmd(a).Execute()
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{v: config.New()})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "authdb",
		Short:         "Manage users, emails, roles and sessions stored in Redis",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.String("redis-addr", "", "redis address (overrides redis.addr)")
	flags.String("log-level", "", "logrus level (overrides logger.level)")
	_ = a.v.BindPFlag("redis.addr", flags.Lookup("redis-addr"))
	_ = a.v.BindPFlag("logger.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newUserCommand(a),
		newEmailCommand(a),
		newRoleCommand(a),
		newSessionCommand(a),
	)

	return rootCmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}

	a.log, err = newLogger(cfg.Logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	for _, w := range cfg.DB.Lint() {
		a.log.WithField("code", w.Code).Warn(w.Message)
	}

	a.rdb = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	a.db, err = authdb.New().
		WithConfig(cfg.DB).
		WithRedis(a.rdb).
		WithLogger(a.log).
		WithAuditSink(authdb.NewJSONWriterSink(cmd.ErrOrStderr())).
		Build()
	if err != nil {
		_ = a.rdb.Close()
		a.rdb = nil
		return err
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
}

func newLogger(cfg *config.Logger, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return l, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitPairs turns repeated key=value flags into a map.
func splitPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
