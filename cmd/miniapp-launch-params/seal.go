// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/heyqbnk/mini-apps-backend-template/lib/process"
	"github.com/heyqbnk/mini-apps-backend-template/lib/sealed"
	"github.com/heyqbnk/mini-apps-backend-template/tenant"
)

func runKeygen(args []string, std streams) error {
	var output string
	flagSet := newFlagSet("keygen", std)
	flagSet.StringVarP(&output, "output", "o", "", "write the identity to this file (mode 0600) instead of stdout")
	if err := parse(flagSet, args); err != nil {
		return err
	}

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	if output == "" {
		fmt.Fprintln(std.out, keypair.Identity.String())
	} else {
		data := append(append([]byte(nil), keypair.Identity.Bytes()...), '\n')
		err := os.WriteFile(output, data, 0o600)
		clear(data)
		if err != nil {
			return fmt.Errorf("writing identity: %w", err)
		}
	}
	fmt.Fprintf(std.err, "public key: %s\n", keypair.Recipient)
	return nil
}

func runSeal(args []string, std streams) error {
	var (
		recipients      []string
		credentialsFile string
	)
	flagSet := newFlagSet("seal", std)
	flagSet.StringArrayVarP(&recipients, "recipient", "r", nil, "age1... recipient (repeatable, at least one)")
	flagSet.StringVar(&credentialsFile, "credentials-file", "-", "appId:secret[,appId:secret...] list, or - for stdin")
	if err := parse(flagSet, args); err != nil {
		return err
	}
	if len(recipients) == 0 {
		return process.Usagef("at least one --recipient is required")
	}
	for _, recipient := range recipients {
		if err := sealed.ValidateRecipient(recipient); err != nil {
			return &process.UsageError{Err: err}
		}
	}

	credentials, err := readSecret(credentialsFile, "Credentials", std)
	if err != nil {
		return err
	}
	defer credentials.Close()
	// Refuse to seal a list the server would reject at startup.
	if _, err := tenant.ParseList(credentials.String()); err != nil {
		return err
	}

	ciphertext, err := sealed.Seal(credentials.Bytes(), recipients...)
	if err != nil {
		return err
	}
	fmt.Fprintln(std.out, ciphertext)
	return nil
}
