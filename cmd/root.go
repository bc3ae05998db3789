// Copyright 2023 Koverse, Inc.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jaffee/commandeer"
	jsoniter "github.com/json-iterator/go"
	"github.com/koverse/kdp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version of this software - filled in by ldflags in Makefile.
	Version string
	// BuildTime of this software - filled in by ldflags in Makefile.
	BuildTime string
)

func setupVersionBuild() {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand creates the top level kdp command with every registered
// subcommand under it.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	setupVersionBuild()
	rc := &cobra.Command{
		Use:   "kdp",
		Short: "kdp - read, write and administer Koverse Data Platform datasets",
		Long: `Tools for moving rows into and out of KDP datasets and for managing
the datasets, workspaces, indexes, jobs and audit logs around them.

Every flag can also be set with a KDP_ prefixed environment variable
(KDP_DATASET_ID for --dataset-id) or in a TOML file passed with --config.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			return setAllConfig(v, cmd.Flags(), "KDP")
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "TOML configuration file to read flag values from.")
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

// setAllConfig applies configuration to every flag in flags from, in priority
// order, the command line, the environment and the TOML file named by the
// config flag. Flags hold pointers into the command's Main struct so the
// values land there directly.
//
// Environment variables are the flag names upper cased with dashes replaced
// by underscores, prefixed with envPrefix and an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	err := v.BindPFlags(flags)
	if err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	c := v.GetString("config")
	if c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		err := v.ReadInConfig()
		if err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// flags set on the command line win, and setting a string slice
			// again would append to it
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// a slice from the config file comes back from GetString as ""
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}

// Platform holds the settings shared by commands which call KDP directly
// rather than ingest a source.
type Platform struct {
	kdp.Preset `flag:"!embed"`
	LogPath    string `help:"Log file to write to. Empty means stderr."`
	Verbose    bool   `help:"Enable verbose logging."`

	ConnOpts []kdp.ConnOption `flag:"-"`
	Stdout   io.Writer        `flag:"-"`

	log kdp.Logger
}

func newPlatform(stdout io.Writer) Platform {
	return Platform{
		Preset: kdp.NewMain().Preset,
		Stdout: stdout,
	}
}

// connect sets up logging, connects and resolves a token.
func (p *Platform) connect(ctx context.Context) (*kdp.Conn, string, error) {
	l, err := kdp.NewLogger(p.LogPath, p.Verbose)
	if err != nil {
		return nil, "", errors.Wrap(err, "setting up logging")
	}
	p.log = l
	conn, err := p.Preset.Conn(append([]kdp.ConnOption{kdp.OptConnLogger(l)}, p.ConnOpts...)...)
	if err != nil {
		return nil, "", errors.Wrap(err, "connecting")
	}
	jwt, err := kdp.ResolveJWT(ctx, p.Preset, conn, l)
	if err != nil {
		return nil, "", errors.Wrap(err, "resolving jwt")
	}
	return conn, jwt, nil
}

// print writes v to Stdout as indented JSON.
func (p *Platform) print(v interface{}) error {
	enc := json.NewEncoder(p.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "printing result")
}

// ingester is a source package's Main.
type ingester interface {
	Run() error
	Log() kdp.Logger
}

// newIngestCommand wraps an ingester in a cobra command whose flags are
// generated from its fields.
func newIngestCommand(use, short string, m ingester) *cobra.Command {
	return newCommand(use, short, m, func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		if err := m.Run(); err != nil {
			return err
		}
		m.Log().Printf("done in %v", time.Since(start))
		return nil
	})
}

// newCommand wraps m in a cobra command whose flags are generated from m's
// fields.
func newCommand(use, short string, m interface{}, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	com := &cobra.Command{
		Use:   use,
		Short: short,
		RunE:  run,
	}
	if err := setFlags(com.Flags(), m); err != nil {
		panic(err)
	}
	return com
}

// embedPrefix is what commandeer puts in front of the flags of a struct field
// tagged flag:"!embed".
const embedPrefix = "!embed."

// setFlags adds a flag to flags for each field of m. The fields of structs
// tagged flag:"!embed" are promoted to top level flags, and flags get no
// shorthand so subcommands can't collide with the root's persistent flags.
func setFlags(flags *pflag.FlagSet, m interface{}) error {
	all := pflag.NewFlagSet("", pflag.ContinueOnError)
	if err := commandeer.Flags(all, m); err != nil {
		return errors.Wrap(err, "generating flags")
	}
	var err error
	all.VisitAll(func(f *pflag.Flag) {
		name := strings.Replace(f.Name, embedPrefix, "", -1)
		if err != nil {
			return
		}
		if flags.Lookup(name) != nil {
			err = errors.Errorf("flag %s defined twice", name)
			return
		}
		flags.AddFlag(&pflag.Flag{
			Name:        name,
			Usage:       f.Usage,
			Value:       f.Value,
			DefValue:    f.DefValue,
			NoOptDefVal: f.NoOptDefVal,
		})
	})
	return err
}
