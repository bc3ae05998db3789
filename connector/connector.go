// Package connector adapts a kdp.Conn to the contract of a data pipeline host
// which reads and writes datasets through plugins: the host hands over its
// settings, pulls rows with GenerateRows and pushes rows through a Writer.
package connector

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/koverse/kdp"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Config is the host's settings for one dataset.
type Config struct {
	DatasetID          string      `mapstructure:"dataset_id"`
	DatasetName        string      `mapstructure:"dataset_name"`
	BatchSize          int         `mapstructure:"batch_size"`
	UseExistingDataset bool        `mapstructure:"use_existing_dataset"`
	Preset             *kdp.Preset `mapstructure:"api_configuration_preset"`
}

// DecodeConfig decodes the settings map a host passes to a plugin. Values are
// weakly typed since hosts commonly send numbers and booleans as strings.
func DecodeConfig(settings map[string]interface{}) (Config, error) {
	cfg := Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, errors.Wrap(err, "getting decoder")
	}
	if err := dec.Decode(settings); err != nil {
		return cfg, errors.Wrap(err, "decoding settings")
	}
	return cfg, nil
}

// Connector serves one dataset to a host.
type Connector struct {
	cfg      Config
	conn     *kdp.Conn
	log      kdp.Logger
	connOpts []kdp.ConnOption
	now      func() time.Time

	mu     sync.Mutex
	jwt    string
	jwtExp time.Time
}

// Option configures a Connector.
type Option func(c *Connector) error

// OptLogger sets the logger, which is also used by the underlying kdp.Conn.
func OptLogger(log kdp.Logger) Option {
	return func(c *Connector) error {
		c.log = log
		return nil
	}
}

// OptConnOptions adds options for the kdp.Conn built from the preset.
func OptConnOptions(opts ...kdp.ConnOption) Option {
	return func(c *Connector) error {
		c.connOpts = append(c.connOpts, opts...)
		return nil
	}
}

// New returns a Connector for cfg. The preset must be set.
func New(cfg Config, opts ...Option) (*Connector, error) {
	if cfg.Preset == nil || *cfg.Preset == (kdp.Preset{}) {
		return nil, errors.New("an API configuration preset is required")
	}
	c := &Connector{
		cfg: cfg,
		log: kdp.NopLogger{},
		now: time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	c.log.Printf("kdp url: %s, ca file: %s", cfg.Preset.KdpURL, cfg.Preset.PathToCAFile)
	connOpts := append([]kdp.ConnOption{kdp.OptConnLogger(c.log)}, c.connOpts...)
	conn, err := cfg.Preset.Conn(connOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "connecting")
	}
	c.conn = conn
	return c, nil
}

// NewFromSettings decodes settings and returns a Connector for them.
func NewFromSettings(settings map[string]interface{}, opts ...Option) (*Connector, error) {
	cfg, err := DecodeConfig(settings)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Config returns the Connector's configuration.
func (c *Connector) Config() Config { return c.cfg }

// GetReadSchema returns nil. The host infers the schema from the rows.
func (c *Connector) GetReadSchema() *Schema { return nil }

// token returns a token for the preset, reusing the previous one until it is
// within a minute of expiring.
func (c *Connector) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jwt != "" && (c.jwtExp.IsZero() || c.now().Add(time.Minute).Before(c.jwtExp)) {
		return c.jwt, nil
	}
	jwt, err := kdp.ResolveJWT(ctx, *c.cfg.Preset, c.conn, c.log)
	if err != nil {
		return "", errors.Wrap(err, "resolving jwt")
	}
	exp, err := kdp.TokenExpiry(jwt)
	if err != nil {
		c.log.Debugf("not tracking expiry of token: %v", err)
		exp = time.Time{}
	}
	c.jwt, c.jwtExp = jwt, exp
	return jwt, nil
}

// RowIterator yields the rows of a dataset.
type RowIterator struct {
	src   *kdp.ReadSource
	limit int
	n     int
}

// Next returns the next row, or io.EOF once the dataset or the records limit
// is exhausted.
func (it *RowIterator) Next() (map[string]interface{}, error) {
	if it.limit > 0 && it.n >= it.limit {
		return nil, io.EOF
	}
	rec, err := it.src.Record()
	if err != nil {
		return nil, err
	}
	it.n++
	return rec.(map[string]interface{}), nil
}

// GenerateRows returns an iterator over the rows of the configured dataset.
// A positive recordsLimit stops the iterator after that many rows. Reading
// requires an existing dataset.
func (c *Connector) GenerateRows(ctx context.Context, recordsLimit int) (*RowIterator, error) {
	jwt, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if c.cfg.DatasetID == "" || !c.cfg.UseExistingDataset {
		return nil, errors.New("cannot read a dataset which is being created or has no dataset_id; check use_existing_dataset and dataset_id")
	}
	src, err := c.conn.NewReadSource(ctx, c.cfg.DatasetID, jwt, kdp.ReadOptions{BatchSize: c.cfg.BatchSize}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "getting read source")
	}
	return &RowIterator{src: src, limit: recordsLimit}, nil
}
