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
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/jeremyhahn/go-signingkey/pkg/encoding"
	"github.com/jeremyhahn/go-signingkey/pkg/signingkey"
	"github.com/spf13/cobra"
)

// digestInput holds the mutually exclusive ways of supplying what to sign
type digestInput struct {
	payload     string
	payloadFile string
	digest      string
}

func (d *digestInput) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.payload, "payload", "", "payload to hash with SHA-256")
	cmd.Flags().StringVar(&d.payloadFile, "payload-file", "", "file whose contents are hashed with SHA-256")
	cmd.Flags().StringVar(&d.digest, "digest", "", "precomputed SHA-256 digest (hex)")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file", "digest")
}

// resolve returns the 32-byte digest selected by the flags. It runs before
// any keystore is opened so bad input never costs a key generation.
func (d *digestInput) resolve(cmd *cobra.Command) ([]byte, error) {
	switch {
	case cmd.Flags().Changed("payload"):
		sum := sha256.Sum256([]byte(d.payload))
		return sum[:], nil
	case d.payloadFile != "":
		// #nosec G304 - Payload path is provided by the user
		data, err := os.ReadFile(d.payloadFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		sum := sha256.Sum256(data)
		return sum[:], nil
	case d.digest != "":
		digest, err := hex.DecodeString(strings.TrimPrefix(d.digest, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: digest must be hex encoded", signingkey.ErrInvalidArgument)
		}
		if len(digest) != signingkey.DigestSize {
			return nil, fmt.Errorf("%w: digest must be %d bytes, got %d",
				signingkey.ErrInvalidArgument, signingkey.DigestSize, len(digest))
		}
		return digest, nil
	default:
		return nil, fmt.Errorf("%w: one of --payload, --payload-file or --digest is required",
			signingkey.ErrInvalidArgument)
	}
}

func newSignCommand(opts *Options) *cobra.Command {
	input := &digestInput{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Generate a key and sign a SHA-256 digest",
		Long: `Generate a fresh P-256 key in the configured keystore and sign the SHA-256
digest of the payload. Prints the base64 DER signature and the public key.

Every invocation creates a new key. With a persistent keystore (file backed
pkcs8, tpm2, pkcs11, awskms, gcpkms, azurekv, vault) the key outlives the
command; the printed handle names it for cleanup. The part after the std: or
enc: route prefix is the provider's key identifier.`,
		Example: `  sigkey sign --payload "Hello, World!"
  sigkey sign --enclave --digest dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := input.resolve(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			signature, err := s.key.Sign(ctx, digest)
			if err != nil {
				return err
			}
			point, err := s.key.PublicKey(ctx)
			if err != nil {
				return err
			}
			pemData, err := encoding.EncodePublicPointPEM(point)
			if err != nil {
				return err
			}

			printer := NewPrinter(opts.OutputFormat, cmd.OutOrStdout())
			return printer.PrintSignResult(&SignResult{
				Enclave:      s.key.UseSecureEnclave(),
				Handle:       s.key.Handle().String(),
				Digest:       hex.EncodeToString(digest),
				Signature:    base64.StdEncoding.EncodeToString(signature),
				PublicKey:    hex.EncodeToString(point),
				PublicKeyPEM: string(pemData),
			})
		},
	}

	input.addFlags(cmd)
	return cmd
}
