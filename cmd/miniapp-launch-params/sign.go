// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
	"github.com/heyqbnk/mini-apps-backend-template/lib/clock"
	"github.com/heyqbnk/mini-apps-backend-template/lib/process"
	"github.com/heyqbnk/mini-apps-backend-template/lib/secret"
	"github.com/heyqbnk/mini-apps-backend-template/tenant"
)

// now is replaced in tests.
var now clock.Clock = clock.Real()

func newFlagSet(name string, std streams) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("miniapp-launch-params "+name, pflag.ContinueOnError)
	flagSet.SetOutput(std.err)
	return flagSet
}

func parse(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return &process.UsageError{Err: err}
	}
	return nil
}

// readSecret reads path ("-" is stdin). An empty path prompts on the
// terminal with echo disabled.
func readSecret(path, prompt string, std streams) (*secret.Buffer, error) {
	switch path {
	case "-":
		return secret.ReadFrom(std.in)
	case "":
	default:
		return secret.ReadFromPath(path)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, process.Usagef("no terminal for the %s prompt (use a file or - for stdin)", prompt)
	}
	fmt.Fprintf(std.err, "%s: ", prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(std.err)
	if err != nil {
		secret.Zero(data)
		return nil, fmt.Errorf("reading %s: %w", prompt, err)
	}
	defer secret.Zero(data)
	return secret.ReadFrom(bytes.NewReader(data))
}

func runSign(args []string, std streams) error {
	var (
		appID      int64
		userID     int64
		lang       string
		ts         int64
		secretFile string
		extra      []string
	)
	flagSet := newFlagSet("sign", std)
	flagSet.Int64Var(&appID, "app-id", 0, "VK application id (required)")
	flagSet.Int64Var(&userID, "user-id", 0, "VK user id (required)")
	flagSet.StringVar(&lang, "lang", string(launchparams.Russian), "vk_language value")
	flagSet.Int64Var(&ts, "ts", 0, "vk_ts in Unix seconds (default: now)")
	flagSet.StringVar(&secretFile, "secret-file", "", "file holding the app secret, or - for stdin (default: prompt)")
	flagSet.StringArrayVar(&extra, "param", nil, "additional vk_key=value parameter (repeatable)")
	if err := parse(flagSet, args); err != nil {
		return err
	}
	if appID == 0 || userID == 0 {
		return process.Usagef("--app-id and --user-id are required")
	}
	if _, ok := launchparams.ParseLanguage(lang); !ok {
		return process.Usagef("unsupported --lang %q", lang)
	}
	if ts == 0 {
		ts = now.Now().Unix()
	}

	params := map[string]string{
		"vk_app_id":   strconv.FormatInt(appID, 10),
		"vk_user_id":  strconv.FormatInt(userID, 10),
		"vk_language": lang,
		"vk_ts":       strconv.FormatInt(ts, 10),
	}
	for _, entry := range extra {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, launchparams.Prefix) {
			return process.Usagef("--param %q must be vk_key=value", entry)
		}
		if strings.Contains(value, "&") {
			return process.Usagef("--param %q: values cannot contain '&'", entry)
		}
		params[key] = value
	}

	appSecret, err := readSecret(secretFile, "App secret", std)
	if err != nil {
		return err
	}
	defer appSecret.Close()

	fmt.Fprintln(std.out, launchparams.SignedQuery(params, appSecret.Bytes()))
	return nil
}

func runVerify(args []string, std streams) error {
	var (
		credentialsFile string
		maxAge          time.Duration
	)
	flagSet := newFlagSet("verify", std)
	flagSet.StringVar(&credentialsFile, "credentials-file", "-", "appId:secret[,appId:secret...] list, or - for stdin")
	flagSet.DurationVar(&maxAge, "max-age", 24*time.Hour, "reject vk_ts older than this; 0 disables expiry")
	if err := parse(flagSet, args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return process.Usagef("verify takes exactly one query argument")
	}

	credentials, err := readSecret(credentialsFile, "Credentials", std)
	if err != nil {
		return err
	}
	store, err := tenant.ParseList(credentials.String())
	credentials.Close()
	if err != nil {
		return err
	}

	verifier := launchparams.NewVerifier(store, launchparams.Policy{
		ExpirationEnabled: maxAge > 0,
		MaxAge:            maxAge,
	}, now)
	identity, err := verifier.Verify(launchparams.Canonicalize(launchparams.FromString(flagSet.Arg(0))))
	if err != nil {
		return err
	}
	fmt.Fprintf(std.out, "valid: user_id=%d app_id=%d lang=%s\n", identity.UserID(), identity.AppID(), identity.Lang())
	return nil
}
