package main

import (
	"io"
	"os"
	"time"

	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/dustin/go-wikigraph/export/bolt"
	"github.com/dustin/go-wikigraph/export/couch"
	"github.com/dustin/go-wikigraph/export/couchbase"
	"github.com/dustin/go-wikigraph/export/elastic"
	"github.com/dustin/go-wikigraph/export/jsonfile"
	"github.com/dustin/go-wikigraph/export/mongo"
	"github.com/dustin/go-wikigraph/export/tsv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is everything a build needs.  It's read from YAML and then
// overridden by flags.
type Config struct {
	Index        string        `yaml:"index"`
	Dump         string        `yaml:"dump"`
	Workers      int           `yaml:"workers"`
	Policy       string        `yaml:"policy"`
	Timeout      time.Duration `yaml:"timeout"`
	AllowPartial bool          `yaml:"allow_partial"`
	MetricsFile  string        `yaml:"metrics_file"`
	Log          LogConfig     `yaml:"log"`
	Sinks        SinkConfig    `yaml:"sinks"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SinkConfig names where the graph goes.  Empty entries are off.
type SinkConfig struct {
	TSV   string `yaml:"tsv"`
	JSON  string `yaml:"json"`
	Bolt  string `yaml:"bolt"`
	Mongo struct {
		URL string `yaml:"url"`
		DB  string `yaml:"db"`
	} `yaml:"mongo"`
	Couch     string `yaml:"couch"`
	Couchbase struct {
		URL    string `yaml:"url"`
		Bucket string `yaml:"bucket"`
	} `yaml:"couchbase"`
	Elastic struct {
		URL   string `yaml:"url"`
		Index string `yaml:"index"`
	} `yaml:"elastic"`
}

func defaultConfig() Config {
	c := Config{Policy: "drop"}
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Sinks.Mongo.DB = "wikigraph"
	c.Sinks.Couchbase.Bucket = "default"
	c.Sinks.Elastic.Index = "wikigraph"
	return c
}

// loadConfig reads a YAML config over the defaults.  An empty path
// gets the defaults.
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "parsing config %v", path)
	}
	return c, nil
}

// Validate checks the config is something a build can run with.
func (c *Config) Validate() error {
	if c.Index == "" {
		return errors.New("no index file given")
	}
	if c.Dump == "" {
		return errors.New("no dump file given")
	}
	if c.Workers < 0 {
		return errors.Errorf("invalid worker count %d", c.Workers)
	}
	if c.Timeout < 0 {
		return errors.Errorf("invalid timeout %v", c.Timeout)
	}
	if _, ok := wikigraph.ParseUnresolvedPolicy(c.Policy); !ok {
		return errors.Errorf("unknown unresolved link policy %q", c.Policy)
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return err
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Sinks.Mongo.URL != "" && c.Sinks.Mongo.DB == "" {
		return errors.New("mongo sink needs a database name")
	}
	if c.Sinks.Couchbase.URL != "" && c.Sinks.Couchbase.Bucket == "" {
		return errors.New("couchbase sink needs a bucket")
	}
	if c.Sinks.Elastic.URL != "" && c.Sinks.Elastic.Index == "" {
		return errors.New("elastic sink needs an index")
	}
	return nil
}

// Options for the assembler.  Validate must have passed.
func (c *Config) Options(log logrus.FieldLogger, m *wikigraph.Metrics) wikigraph.Options {
	policy, _ := wikigraph.ParseUnresolvedPolicy(c.Policy)
	return wikigraph.Options{
		Workers: c.Workers,
		Policy:  policy,
		Logger:  log,
		Metrics: m,
	}
}

// Exporters for every configured sink, files first.
func (c *Config) Exporters(log logrus.FieldLogger) export.Multi {
	var rv export.Multi
	s := c.Sinks
	if s.TSV != "" {
		rv = append(rv, tsv.New(s.TSV, log))
	}
	if s.JSON != "" {
		rv = append(rv, jsonfile.New(s.JSON, log))
	}
	if s.Bolt != "" {
		rv = append(rv, bolt.New(s.Bolt, log))
	}
	if s.Mongo.URL != "" {
		rv = append(rv, mongo.New(s.Mongo.URL, s.Mongo.DB, log))
	}
	if s.Couch != "" {
		rv = append(rv, couch.New(s.Couch, log))
	}
	if s.Couchbase.URL != "" {
		rv = append(rv, couchbase.New(s.Couchbase.URL, s.Couchbase.Bucket, log))
	}
	if s.Elastic.URL != "" {
		e := elastic.New(s.Elastic.URL, log)
		e.Index = s.Elastic.Index
		rv = append(rv, e)
	}
	return rv
}

// newLogger builds the logger the config asks for, writing to w.
func newLogger(c LogConfig, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	level := c.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
