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

package cli

import (
	"encoding/hex"

	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/spf13/cobra"
)

func newPubkeyCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Generate a key and print its public key",
		Long: `Generate a fresh P-256 key in the configured keystore and print its public
key as hex and PEM.

Every invocation creates a new key. With a persistent keystore the key
outlives the command; the printed handle names it for cleanup.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			point, err := s.key.PublicKey(ctx)
			if err != nil {
				return err
			}
			pemData, err := encoding.EncodePublicPointPEM(point)
			if err != nil {
				return err
			}

			printer := NewPrinter(opts.OutputFormat, cmd.OutOrStdout())
			return printer.PrintPublicKey(&PublicKeyResult{
				Enclave:      s.key.UseSecureEnclave(),
				Handle:       s.key.Handle().String(),
				PublicKey:    hex.EncodeToString(point),
				PublicKeyPEM: string(pemData),
			})
		},
	}
}
