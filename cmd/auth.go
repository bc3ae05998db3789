package cmd

import (
	"context"
	"io"
	"time"

	"github.com/koverse/kdp"
	"github.com/spf13/cobra"
)

// AuthMain resolves a token with the configured credentials and prints it
// with its expiry.
type AuthMain struct {
	Platform       `flag:"!embed"`
	ProxyFirstName string `help:"Exchange the resolved token for one belonging to this user through the proxy strategy."`
}

type tokenInfo struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Run gets the token.
func (m *AuthMain) Run(ctx context.Context) error {
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	if m.ProxyFirstName != "" {
		details, err := conn.CreateProxyAuthenticationToken(ctx, m.ProxyFirstName, m.WorkspaceID, jwt, "")
		if err != nil {
			return err
		}
		jwt = details.AccessToken
	}
	info := tokenInfo{AccessToken: jwt}
	exp, err := kdp.TokenExpiry(jwt)
	if err != nil {
		m.log.Printf("token is not a readable JWT: %v", err)
	} else if !exp.IsZero() {
		info.ExpiresAt = &exp
	}
	return m.print(info)
}

// NewAuthCommand returns a cobra command wrapping an AuthMain.
func NewAuthCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &AuthMain{Platform: newPlatform(stdout)}
	return newCommand("auth", "print a KDP token for the configured credentials", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background())
	})
}

func init() {
	subcommandFns["auth"] = NewAuthCommand
}
