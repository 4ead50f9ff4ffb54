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
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// SignResult is the outcome of the sign command
type SignResult struct {
	Enclave      bool   `json:"enclave"`
	Handle       string `json:"handle"`
	Digest       string `json:"digest"`
	Signature    string `json:"signature"`
	PublicKey    string `json:"public_key"`
	PublicKeyPEM string `json:"public_key_pem"`
}

// PublicKeyResult is the outcome of the pubkey command
type PublicKeyResult struct {
	Enclave      bool   `json:"enclave"`
	Handle       string `json:"handle"`
	PublicKey    string `json:"public_key"`
	PublicKeyPEM string `json:"public_key_pem"`
}

// PrintSignResult prints a digest signature and the key that made it
func (p *Printer) PrintSignResult(r *SignResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Enclave:    %t\n", r.Enclave)
		fmt.Fprintf(p.writer, "Handle:     %s\n", r.Handle)
		fmt.Fprintf(p.writer, "Digest:     %s\n", r.Digest)
		fmt.Fprintf(p.writer, "Signature:  %s\n", r.Signature)
		fmt.Fprintf(p.writer, "Public Key: %s\n", r.PublicKey)
		fmt.Fprint(p.writer, r.PublicKeyPEM)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPublicKey prints a public key as hex and PEM
func (p *Printer) PrintPublicKey(r *PublicKeyResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Enclave:    %t\n", r.Enclave)
		fmt.Fprintf(p.writer, "Handle:     %s\n", r.Handle)
		fmt.Fprintf(p.writer, "Public Key: %s\n", r.PublicKey)
		fmt.Fprint(p.writer, r.PublicKeyPEM)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
