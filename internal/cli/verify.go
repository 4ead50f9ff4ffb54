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
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/jeremyhahn/go-signingkey/pkg/verification"
	"github.com/spf13/cobra"
)

func newVerifyCommand(opts *Options) *cobra.Command {
	input := &digestInput{}
	var pubkeyFile, pubkeyHex, signatureB64 string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature against a public key",
		Long: `Verify a base64 DER ECDSA signature over the SHA-256 digest of a payload.
The public key is either a PEM file or the hex encoded uncompressed point
printed by sign and pubkey. No keystore is opened.`,
		Example: `  sigkey verify --pubkey key.pem --signature MEUCIQ... --payload "Hello, World!"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := input.resolve(cmd)
			if err != nil {
				return err
			}

			signature, err := base64.StdEncoding.DecodeString(signatureB64)
			if err != nil || len(signature) == 0 {
				return fmt.Errorf("%w: signature must be base64 encoded", signingkey.ErrInvalidArgument)
			}

			verifier, err := loadVerifier(pubkeyFile, pubkeyHex)
			if err != nil {
				return err
			}
			if err := verifier.VerifyDigest(digest, signature); err != nil {
				return err
			}

			printer := NewPrinter(opts.OutputFormat, cmd.OutOrStdout())
			return printer.PrintSuccess("Signature valid")
		},
	}

	input.addFlags(cmd)
	cmd.Flags().StringVar(&pubkeyFile, "pubkey", "", "PEM encoded public key file")
	cmd.Flags().StringVar(&pubkeyHex, "pubkey-hex", "", "hex encoded uncompressed public point")
	cmd.Flags().StringVar(&signatureB64, "signature", "", "base64 encoded DER signature")
	cmd.MarkFlagsMutuallyExclusive("pubkey", "pubkey-hex")
	cmd.MarkFlagsOneRequired("pubkey", "pubkey-hex")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func loadVerifier(pubkeyFile, pubkeyHex string) (verification.Verifier, error) {
	if pubkeyFile != "" {
		// #nosec G304 - Public key path is provided by the user
		pemData, err := os.ReadFile(pubkeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		pub, err := encoding.DecodePublicKeyPEM(pemData)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", signingkey.ErrInvalidArgument, err)
		}
		v, err := verification.NewVerifierFromKey(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", signingkey.ErrInvalidArgument, err)
		}
		return v, nil
	}

	point, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: public key must be hex encoded", signingkey.ErrInvalidArgument)
	}
	v, err := verification.NewVerifier(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", signingkey.ErrInvalidArgument, err)
	}
	return v, nil
}
