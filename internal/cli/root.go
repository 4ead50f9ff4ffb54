// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-signingkey.
//
// go-signingkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli implements the sigkey command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-signingkey/internal/config"
	"github.com/jeremyhahn/go-signingkey/pkg/correlation"
	"github.com/jeremyhahn/go-signingkey/pkg/keystore"
	"github.com/jeremyhahn/go-signingkey/pkg/logging"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/spf13/cobra"
)

// Options holds the global CLI flags
type Options struct {
	// ConfigFile is the path to the YAML configuration file
	ConfigFile string

	// OutputFormat controls output formatting (text, json)
	OutputFormat string

	// Enclave overrides signing_key.use_secure_enclave when set on the command line
	Enclave bool

	// Verbose enables debug logging
	Verbose bool
}

// NewRootCommand builds the sigkey command tree.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *Options) {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "sigkey",
		Short: "sigkey - hardware-backed ECDSA P-256 signing",
		Long: `sigkey generates an ECDSA P-256 key inside a keystore, signs SHA-256
digests with it and verifies the resulting signatures. The private key
never leaves the keystore.

Supported keystores:
  - pkcs8:   PKCS#8 software keys (standard path)
  - awskms:  AWS Key Management Service (standard path)
  - tpm2:    TPM 2.0 hardware keys (enclave path)
  - pkcs11:  PKCS#11 HSM keys (enclave path)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(correlation.Ensure(cmd.Context()))
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "",
		"config file (defaults to in-memory software keys)")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&opts.Enclave, "enclave", false,
		"generate and sign on the enclave path")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(newSignCommand(opts))
	rootCmd.AddCommand(newVerifyCommand(opts))
	rootCmd.AddCommand(newPubkeyCommand(opts))
	rootCmd.AddCommand(newVersionCommand(opts))

	return rootCmd, opts
}

// Execute runs the root command against os.Args, prints any error to stderr
// and returns the process exit code.
func Execute() int {
	cmd, opts := newRootCommand()
	if err := cmd.Execute(); err != nil {
		printer := NewPrinter(opts.OutputFormat, cmd.ErrOrStderr())
		_ = printer.PrintError(err) // Error printing to stderr is best-effort
		return ExitCode(err)
	}
	return ExitOK
}

// session is a generated signing key and the keystore behind it.
type session struct {
	key      *signingkey.SigningKey
	keystore *keystore.Router
	logger   *logging.Logger
}

// Close closes the keystore. A close failure happens after the command's
// output was written, so it is logged rather than returned.
func (s *session) Close() {
	s.logger.MaybeError(s.keystore.Close())
}

// openSession loads configuration, builds the keystore and generates a key
// on the configured path.
func openSession(ctx context.Context, cmd *cobra.Command, opts *Options) (*session, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("enclave") {
		cfg.SigningKey.UseSecureEnclave = opts.Enclave
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg, opts)
	keyLogger := logger.With(correlation.LogArgs(ctx)...)
	keyLogger.Debugf("config: standard=%s enclave=%q use_secure_enclave=%t",
		cfg.Keystore.Standard, cfg.Keystore.Enclave, cfg.SigningKey.UseSecureEnclave)

	router, err := config.BuildKeystore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	key, err := signingkey.New(router,
		signingkey.WithSecureEnclave(cfg.SigningKey.UseSecureEnclave),
		signingkey.WithLogger(keyLogger))
	if err != nil {
		_ = router.Close()
		return nil, err
	}
	if err := key.Generate(ctx); err != nil {
		_ = router.Close()
		return nil, err
	}
	return &session{key: key, keystore: router, logger: keyLogger}, nil
}

func newLogger(w io.Writer, cfg *config.Config, opts *Options) *logging.Logger {
	debug := opts.Verbose || strings.EqualFold(cfg.Logging.Level, "debug")
	return logging.NewWithWriter(w, debug, cfg.Logging.Format)
}
