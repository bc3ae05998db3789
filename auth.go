package kdp

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/koverse/kdp/api"
	"github.com/koverse/kdp/keycloak"
	"github.com/pkg/errors"
)

// Authentication types understood by ResolveJWT.
const (
	AuthTypeBasic    = "basic_login"
	AuthTypeKeycloak = "keycloak_login"
	AuthTypeJWT      = "jwt"
)

// CreateAuthenticationToken logs in with an email and password. An empty
// strategy means api.StrategyLocal.
func (c *Conn) CreateAuthenticationToken(ctx context.Context, email, password, workspaceID, strategy string) (*api.AuthenticationDetails, error) {
	if strategy == "" {
		strategy = api.StrategyLocal
	}
	details, err := c.client.PostAuthentication(ctx, api.AuthenticationRequest{
		Strategy:    strategy,
		Email:       email,
		Password:    password,
		WorkspaceID: workspaceID,
	})
	return details, errors.Wrapf(err, "authenticating %s", email)
}

// CreateProxyAuthenticationToken gets a token for a user whose identity was
// established by an authenticating proxy. jwt authorizes the call. An empty
// strategy means api.StrategyProxy.
func (c *Conn) CreateProxyAuthenticationToken(ctx context.Context, firstName, workspaceID, jwt, strategy string) (*api.AuthenticationDetails, error) {
	if strategy == "" {
		strategy = api.StrategyProxy
	}
	details, err := c.client.PostAuthentication(ctx, api.AuthenticationRequest{
		Strategy:    strategy,
		FirstName:   firstName,
		WorkspaceID: workspaceID,
	}, api.WithBearerToken(jwt))
	return details, errors.Wrapf(err, "authenticating %s through proxy", firstName)
}

// CreateKeycloakAuthenticationToken gets a token from the Keycloak realm in
// kc and exchanges it for a KDP token in workspaceID.
func (c *Conn) CreateKeycloakAuthenticationToken(ctx context.Context, kc keycloak.Config, workspaceID string) (*api.AuthenticationDetails, error) {
	return c.createKeycloakAuthenticationToken(ctx, kc, workspaceID, nil)
}

func (c *Conn) createKeycloakAuthenticationToken(ctx context.Context, kc keycloak.Config, workspaceID string, kcClient *http.Client) (*api.AuthenticationDetails, error) {
	kcToken, err := kc.Token(ctx, kcClient)
	if err != nil {
		return nil, errors.Wrap(err, "getting keycloak token")
	}
	c.log.Debugf("got keycloak token for %s", kc.Username)
	details, err := c.client.PostAuthentication(ctx, api.AuthenticationRequest{
		Strategy:    api.StrategyKeycloak,
		AccessToken: kcToken,
		WorkspaceID: workspaceID,
	})
	return details, errors.Wrap(err, "exchanging keycloak token")
}

// TokenExpiry returns the expiry of a JWT. The signature is not verified. The
// zero time is returned if the token has no exp claim.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "parsing jwt")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "reading exp claim")
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Preset holds the connection and credential settings a host application
// stores for the Platform.
type Preset struct {
	KdpURL       string `mapstructure:"kdp_url" help:"Base URL of the KDP API."`
	PathToCAFile string `mapstructure:"path_to_ca_file" help:"PEM file of CA certificates. Empty disables certificate verification."`
	AuthType     string `mapstructure:"auth_type" help:"One of basic_login, keycloak_login or jwt."`
	KdpJWT       string `mapstructure:"kdp_jwt" help:"KDP token, used when auth-type is jwt."`
	Email        string `mapstructure:"email" help:"Email for basic_login."`
	Password     string `mapstructure:"password" help:"Password for basic_login."`
	WorkspaceID  string `mapstructure:"workspace_id" help:"KDP workspace ID."`

	KeycloakHost         string `mapstructure:"keycloak_host" help:"Keycloak host for keycloak_login."`
	KeycloakRealm        string `mapstructure:"keycloak_realm" help:"Keycloak realm."`
	KeycloakClientID     string `mapstructure:"keycloak_client_id" help:"Keycloak client ID."`
	KeycloakClientSecret string `mapstructure:"keycloak_client_secret" help:"Keycloak client secret."`
	KeycloakUsername     string `mapstructure:"keycloak_username" help:"Keycloak username."`
	KeycloakPassword     string `mapstructure:"keycloak_password" help:"Keycloak password."`
}

// Keycloak returns the Keycloak settings of the preset.
func (p Preset) Keycloak() keycloak.Config {
	return keycloak.Config{
		Host:         p.KeycloakHost,
		Realm:        p.KeycloakRealm,
		ClientID:     p.KeycloakClientID,
		ClientSecret: p.KeycloakClientSecret,
		Username:     p.KeycloakUsername,
		Password:     p.KeycloakPassword,
	}
}

// Conn returns a Conn to the preset's KDP URL. opts are applied after the
// preset's own.
func (p Preset) Conn(opts ...ConnOption) (*Conn, error) {
	all := make([]ConnOption, 0, len(opts)+2)
	if p.KdpURL != "" {
		all = append(all, OptConnHost(p.KdpURL))
	}
	all = append(all, OptConnCAFile(p.PathToCAFile))
	all = append(all, opts...)
	return NewConn(all...)
}

// ResolveJWT gets a token according to the preset's AuthType. basic_login
// logs in with Email and Password, keycloak_login goes through the Keycloak
// realm, and anything else uses KdpJWT as is.
func ResolveJWT(ctx context.Context, p Preset, conn *Conn, log Logger) (string, error) {
	return resolveJWT(ctx, p, conn, log, nil)
}

func resolveJWT(ctx context.Context, p Preset, conn *Conn, log Logger, kcClient *http.Client) (string, error) {
	if log == nil {
		log = NopLogger{}
	}
	switch p.AuthType {
	case AuthTypeBasic:
		log.Printf("auth type is %s, authenticating with email and password", p.AuthType)
		if p.Email == "" || p.Password == "" {
			return "", errors.New("email and password are required for basic_login")
		}
		details, err := conn.CreateAuthenticationToken(ctx, p.Email, p.Password, p.WorkspaceID, "")
		if err != nil {
			return "", err
		}
		log.Printf("jwt has been created")
		return details.AccessToken, nil
	case AuthTypeKeycloak:
		log.Printf("auth type is %s, authenticating with keycloak", p.AuthType)
		kc := p.Keycloak()
		kc.VerifySSL = false
		details, err := conn.createKeycloakAuthenticationToken(ctx, kc, p.WorkspaceID, kcClient)
		if err != nil {
			return "", err
		}
		log.Printf("jwt has been created via keycloak")
		return details.AccessToken, nil
	default:
		if p.KdpJWT == "" {
			return "", errors.New("a KDP JSON web token is required in the preset")
		}
		log.Printf("jwt is provided in the preset")
		return p.KdpJWT, nil
	}
}
