package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-dbsnp/internal/ingest"
	"github.com/inodb/vibe-dbsnp/internal/output"
	"github.com/inodb/vibe-dbsnp/internal/query"
	"github.com/inodb/vibe-dbsnp/internal/remote"
	"github.com/inodb/vibe-dbsnp/internal/store"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

const (
	defaultDBVersion = 150
	configName       = ".dbsnp"
	envPrefix        = "DBSNP"
)

// app carries the streams and the logger shared by all commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// NewRootCommand builds the dbsnp command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, logger: zap.NewNop()}

	rc := &cobra.Command{
		Use:   "dbsnp",
		Short: "Build and query dbSNP variant databases",
		Long: `dbsnp loads dbSNP BED files into a versioned database
(<dir>/dbsnp<version>.db) and answers lookups by rsID, position and range.

Databases can be published to and read from S3 or MinIO.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd.Flags()); err != nil {
				return err
			}
			return a.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	pf := rc.PersistentFlags()
	pf.StringP("config", "c", "", "Config file (default ~/.dbsnp.yaml)")
	pf.StringP("dir", "d", "", "Database directory, engine connection string or remote location")
	pf.Int("db-version", defaultDBVersion, "dbSNP version")
	pf.String("engine", "", "Storage engine: "+strings.Join(store.Engines(), ", "))
	pf.StringP("format", "f", output.FormatTab, "Output format: tab, json")
	pf.BoolP("verbose", "v", false, "Enable debug logging")

	bindFlag("db.dir", pf.Lookup("dir"))
	bindFlag("db.version", pf.Lookup("db-version"))
	bindFlag("db.engine", pf.Lookup("engine"))
	bindFlag("output.format", pf.Lookup("format"))
	bindFlag("verbose", pf.Lookup("verbose"))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	rc.SetVersionTemplate("dbsnp version {{.Version}}\n")

	rc.AddCommand(newInitCmd(a))
	rc.AddCommand(newBuildCmd(a))
	rc.AddCommand(newInfoCmd(a))
	rc.AddCommand(newLookupCmd(a))
	rc.AddCommand(newSampleCmd(a))
	rc.AddCommand(newPublishCmd(a))
	rc.AddCommand(newConfigCmd(a))

	return rc
}

func bindFlag(key string, f *pflag.Flag) {
	cobra.CheckErr(viper.BindPFlag(key, f))
}

// initConfig layers defaults, the config file and DBSNP_* environment
// variables under the command line flags.
func initConfig(flags *pflag.FlagSet) error {
	viper.SetDefault("db.version", defaultDBVersion)
	viper.SetDefault("ingest.batch_size", ingest.DefaultBatchSize)
	viper.SetDefault("query.chunk_size", query.DefaultChunkSize)
	viper.SetDefault("query.concurrency", query.DefaultConcurrency)
	viper.SetDefault("remote.use_ssl", true)

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	cfgFile, _ := flags.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func (a *app) initLogger() error {
	var (
		l   *zap.Logger
		err error
	)
	if viper.GetBool("verbose") {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.logger = l
	return nil
}

func remoteConfig() remote.Config {
	return remote.Config{
		Endpoint:  viper.GetString("remote.endpoint"),
		Region:    viper.GetString("remote.region"),
		AccessKey: viper.GetString("remote.access_key"),
		SecretKey: viper.GetString("remote.secret_key"),
		UseSSL:    viper.GetBool("remote.use_ssl"),
	}
}

// openStore binds a handle to the configured location and version.
func (a *app) openStore(ctx context.Context) (*store.Handle, error) {
	dir := viper.GetString("db.dir")
	if dir == "" {
		return nil, fmt.Errorf("%w: no database location (use --dir or set db.dir)", store.ErrConfiguration)
	}
	return store.Open(ctx, dir, viper.GetInt("db.version"),
		store.WithEngine(viper.GetString("db.engine")),
		store.WithLogger(a.logger),
		store.WithCacheDir(viper.GetString("remote.cache_dir")),
		store.WithRemoteConfig(remoteConfig()))
}

func (a *app) newEngine(h *store.Handle, opts ...query.Option) *query.Engine {
	base := []query.Option{
		query.WithChunkSize(viper.GetInt("query.chunk_size")),
		query.WithConcurrency(viper.GetInt("query.concurrency")),
		query.WithLogger(a.logger),
	}
	return query.New(h, append(base, opts...)...)
}

func (a *app) writeVariants(vs []variant.Variant) error {
	w, err := output.New(viper.GetString("output.format"), a.stdout)
	if err != nil {
		return err
	}
	return output.WriteAll(w, vs)
}
