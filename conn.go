package kdp

import (
	"net/http"
	"time"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Conn is a connection to a KDP API server. It is safe for concurrent use.
// Every operation takes the caller's JWT, so one Conn can serve many users.
type Conn struct {
	host               string
	caFile             string
	discardUnknownKeys bool
	httpClient         *http.Client

	client  *api.Client
	log     Logger
	stats   Statter
	limiter *rate.Limiter
}

// ConnOption is a functional option type for NewConn.
type ConnOption func(c *Conn) error

// OptConnHost sets the base URL of the KDP API.
func OptConnHost(host string) ConnOption {
	return func(c *Conn) error {
		c.host = host
		return nil
	}
}

// OptConnCAFile sets the path to a PEM file of CA certificates used to verify
// the server. When empty (the default) the server certificate is not
// verified.
func OptConnCAFile(path string) ConnOption {
	return func(c *Conn) error {
		c.caFile = path
		return nil
	}
}

// OptConnDiscardUnknownKeys controls whether response keys which the client
// doesn't know about are ignored (the default) or cause an error.
func OptConnDiscardUnknownKeys(discard bool) ConnOption {
	return func(c *Conn) error {
		c.discardUnknownKeys = discard
		return nil
	}
}

// OptConnHTTPClient sets the HTTP client. When set, OptConnCAFile has no
// effect.
func OptConnHTTPClient(client *http.Client) ConnOption {
	return func(c *Conn) error {
		c.httpClient = client
		return nil
	}
}

// OptConnLogger sets the logger.
func OptConnLogger(log Logger) ConnOption {
	return func(c *Conn) error {
		c.log = log
		return nil
	}
}

// OptConnStatter sets the stats collector.
func OptConnStatter(stats Statter) ConnOption {
	return func(c *Conn) error {
		c.stats = stats
		return nil
	}
}

// OptConnWriteRate limits the number of write batches sent per second. A
// value <= 0 means no limit.
func OptConnWriteRate(batchesPerSecond float64) ConnOption {
	return func(c *Conn) error {
		if batchesPerSecond <= 0 {
			c.limiter = nil
			return nil
		}
		c.limiter = rate.NewLimiter(rate.Limit(batchesPerSecond), 1)
		return nil
	}
}

// NewConn returns a Conn with the options applied.
func NewConn(opts ...ConnOption) (*Conn, error) {
	c := &Conn{
		host:               api.DefaultServer,
		discardUnknownKeys: true,
		log:                NopLogger{},
		stats:              NopStatter{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	if c.httpClient == nil {
		tlsConfig, err := GetTLSConfig(c.caFile, c.log)
		if err != nil {
			return nil, errors.Wrap(err, "getting tls config")
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		c.httpClient = &http.Client{
			Transport: transport,
			Timeout:   5 * time.Minute,
		}
	}
	clientOpts := []api.ClientOption{api.WithHTTPClient(c.httpClient)}
	if !c.discardUnknownKeys {
		clientOpts = append(clientOpts, api.WithDisallowUnknownFields())
	}
	var err error
	c.client, err = api.NewClient(c.host, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "getting api client")
	}
	return c, nil
}

// Host returns the base URL the Conn talks to.
func (c *Conn) Host() string { return c.host }

// API returns the underlying REST client for calls the Conn doesn't wrap.
func (c *Conn) API() *api.Client { return c.client }
