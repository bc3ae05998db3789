// Package keycloak gets access tokens from a Keycloak realm so they can be
// exchanged for a KDP token.
package keycloak

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Config identifies a Keycloak client and the user to log in as.
type Config struct {
	// Host is the Keycloak host name. It may include a scheme, otherwise https
	// is used.
	Host         string
	Realm        string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// VerifySSL enables verification of the Keycloak server certificate.
	VerifySSL bool
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("keycloak host is required")
	case c.Realm == "":
		return errors.New("keycloak realm is required")
	case c.ClientID == "":
		return errors.New("keycloak client id is required")
	}
	return nil
}

// TokenURL is the realm's OpenID Connect token endpoint.
func (c Config) TokenURL() string {
	host := strings.TrimSuffix(c.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + "/realms/" + url.PathEscape(c.Realm) + "/protocol/openid-connect/token"
}

func (c Config) oauth2Config() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL(),
		Scopes:       []string{"openid"},
		EndpointParams: url.Values{
			"username": {c.Username},
			"password": {c.Password},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// HTTPClient returns the client used to reach Keycloak. With verify false,
// the server certificate is not checked.
func HTTPClient(verify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// Token fetches an access token with the client credentials grant. If client
// is nil, one is built with HTTPClient(c.VerifySSL).
func (c Config) Token(ctx context.Context, client *http.Client) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if client == nil {
		client = HTTPClient(c.VerifySSL)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	tok, err := c.oauth2Config().Token(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "getting token from realm '%s'", c.Realm)
	}
	if tok.AccessToken == "" {
		return "", errors.Errorf("keycloak realm '%s' returned an empty access token", c.Realm)
	}
	return tok.AccessToken, nil
}
