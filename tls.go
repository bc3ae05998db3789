package kdp

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"

	"github.com/pkg/errors"
)

// GetTLSConfig returns the client TLS configuration for talking to the
// Platform. An empty caFile disables server certificate verification;
// otherwise the PEM encoded certificates in caFile become the root pool.
func GetTLSConfig(caFile string, log Logger) (*tls.Config, error) {
	if log == nil {
		log = NopLogger{}
	}
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if caFile == "" {
		log.Printf("no CA file configured, server certificates will not be verified")
		config.InsecureSkipVerify = true
		return config, nil
	}
	b, err := ioutil.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading tls ca file")
	}
	certPool := x509.NewCertPool()
	if ok := certPool.AppendCertsFromPEM(b); !ok {
		return nil, errors.Errorf("no certificates parsed from CA file '%s'", caFile)
	}
	config.RootCAs = certPool
	return config, nil
}
