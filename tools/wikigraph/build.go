package main

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-wikigraph"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// A partialError means the graph was built and exported but some blocks
// couldn't be read.
type partialError struct {
	err error
}

func (e *partialError) Error() string {
	return "graph is partial: " + e.err.Error()
}

func (e *partialError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var pe *partialError
	if errors.As(err, &pe) {
		return 2
	}
	return 1
}

func newBuildCmd() *cobra.Command {
	var configPath string
	flags := defaultConfig()

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the link graph and export it",
		Long: `Build runs two passes over the dump.  The first collects every
article, the second resolves each article's links against them.  The graph
then goes to every configured sink.

Blocks that can't be read are logged and skipped.  The command exits with
status 2 if any were, unless --allow-partial is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, &flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), &cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.StringVar(&flags.Index, "index", "", "multistream index file (plain or .bz2)")
	f.StringVar(&flags.Dump, "dump", "", "multistream dump file")
	f.IntVar(&flags.Workers, "workers", 0, "blocks processed at once (default GOMAXPROCS)")
	f.StringVar(&flags.Policy, "policy", flags.Policy, "unresolved links: drop or missing")
	f.DurationVar(&flags.Timeout, "timeout", 0, "give up after this long")
	f.BoolVar(&flags.AllowPartial, "allow-partial", false, "exit 0 even if blocks failed")
	f.StringVar(&flags.MetricsFile, "metrics-file", "", "write prometheus metrics here when done")
	f.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "log level")
	f.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "log format: text or json")
	f.StringVar(&flags.Sinks.TSV, "tsv", "", "write nodes.csv and edges.csv into this directory")
	f.StringVar(&flags.Sinks.JSON, "json", "", "write the graph as JSON to this file")
	f.StringVar(&flags.Sinks.Bolt, "bolt", "", "store the graph in this bbolt file")
	f.StringVar(&flags.Sinks.Mongo.URL, "mongo", "", "MongoDB URL")
	f.StringVar(&flags.Sinks.Mongo.DB, "mongo-db", flags.Sinks.Mongo.DB, "MongoDB database")
	f.StringVar(&flags.Sinks.Couch, "couch", "", "CouchDB database URL")
	f.StringVar(&flags.Sinks.Couchbase.URL, "couchbase", "", "Couchbase URL")
	f.StringVar(&flags.Sinks.Couchbase.Bucket, "bucket", flags.Sinks.Couchbase.Bucket, "Couchbase bucket")
	f.StringVar(&flags.Sinks.Elastic.URL, "elastic", "", "ElasticSearch URL")
	f.StringVar(&flags.Sinks.Elastic.Index, "elastic-index", flags.Sinks.Elastic.Index, "ElasticSearch index")
	return cmd
}

// applyFlags copies the flags that were given on the command line over
// cfg.
func applyFlags(cmd *cobra.Command, cfg, flags *Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("index", func() { cfg.Index = flags.Index })
	set("dump", func() { cfg.Dump = flags.Dump })
	set("workers", func() { cfg.Workers = flags.Workers })
	set("policy", func() { cfg.Policy = flags.Policy })
	set("timeout", func() { cfg.Timeout = flags.Timeout })
	set("allow-partial", func() { cfg.AllowPartial = flags.AllowPartial })
	set("metrics-file", func() { cfg.MetricsFile = flags.MetricsFile })
	set("log-level", func() { cfg.Log.Level = flags.Log.Level })
	set("log-format", func() { cfg.Log.Format = flags.Log.Format })
	set("tsv", func() { cfg.Sinks.TSV = flags.Sinks.TSV })
	set("json", func() { cfg.Sinks.JSON = flags.Sinks.JSON })
	set("bolt", func() { cfg.Sinks.Bolt = flags.Sinks.Bolt })
	set("mongo", func() { cfg.Sinks.Mongo.URL = flags.Sinks.Mongo.URL })
	set("mongo-db", func() { cfg.Sinks.Mongo.DB = flags.Sinks.Mongo.DB })
	set("couch", func() { cfg.Sinks.Couch = flags.Sinks.Couch })
	set("couchbase", func() { cfg.Sinks.Couchbase.URL = flags.Sinks.Couchbase.URL })
	set("bucket", func() { cfg.Sinks.Couchbase.Bucket = flags.Sinks.Couchbase.Bucket })
	set("elastic", func() { cfg.Sinks.Elastic.URL = flags.Sinks.Elastic.URL })
	set("elastic-index", func() { cfg.Sinks.Elastic.Index = flags.Sinks.Elastic.Index })
}

func runBuild(ctx context.Context, cfg *Config, log logrus.FieldLogger) error {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	start := time.Now()

	reg := prometheus.NewRegistry()
	metrics := wikigraph.NewMetrics(reg)
	if cfg.MetricsFile != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
				log.Warnf("Error writing metrics: %v", err)
			}
		}()
	}

	offsets, err := wikigraph.LoadOffsetsFile(cfg.Index, log)
	if err != nil {
		return errors.Wrap(err, "loading index")
	}
	dump, err := wikigraph.OpenDump(cfg.Dump, log)
	if err != nil {
		return err
	}
	defer dump.Close()

	a := wikigraph.NewAssembler(dump, wikigraph.Ranges(offsets), cfg.Options(log, metrics))
	if err := a.BuildNodes(ctx); err != nil {
		return errors.Wrap(err, "building nodes")
	}
	if err := a.BuildEdges(ctx); err != nil {
		return errors.Wrap(err, "building edges")
	}
	g, err := a.Graph()
	if err != nil {
		return err
	}

	if sinks := cfg.Exporters(log); len(sinks) > 0 {
		if err := a.Export(ctx, sinks); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"blocks":  len(offsets),
		"failed":  len(g.Failures),
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
	}).Infof("Built graph of %s articles and %s edges",
		humanize.Comma(int64(g.Nodes.Len())), humanize.Comma(int64(len(g.Edges))))

	if g.Partial() && !cfg.AllowPartial {
		return &partialError{g.Err()}
	}
	return nil
}
