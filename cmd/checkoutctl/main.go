// checkoutctl is an operator tool for the checkout protocol credentials.
//
//	checkoutctl token             exchange client credentials, print expiry
//	checkoutctl embed <url>       print the embedded checkout URL for a
//	                              continuation link
//
// Credentials come from UCP_CLIENT_ID / UCP_CLIENT_SECRET (or .env) unless
// overridden by flags. The bearer token itself is never printed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	appconfig "github.com/AnthonyGillesRudolfo/group-checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("checkoutctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	clientID := flagSet.String("client-id", cfg.UCP.ClientID, "client id (default $UCP_CLIENT_ID)")
	clientSecret := flagSet.String("client-secret", cfg.UCP.ClientSecret, "client secret (default $UCP_CLIENT_SECRET)")
	tokenURL := flagSet.String("token-url", cfg.UCP.TokenURL, "token endpoint")
	timeout := flagSet.Duration("timeout", cfg.UCP.Timeout, "token request timeout")
	help := flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if *help || len(args) == 0 {
		printHelp(stderr, flagSet)
		return nil
	}

	tm := ucp.NewTokenManager(*clientID, *clientSecret,
		ucp.WithTokenURL(*tokenURL),
		ucp.WithTokenTimeout(*timeout),
	)

	switch args[0] {
	case "token":
		if len(args) != 1 {
			return fmt.Errorf("token takes no arguments")
		}
		if _, err := tm.Token(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "credentials ok; token expires %s (in %s)\n",
			tm.ExpiresAt().Format(time.RFC3339), time.Until(tm.ExpiresAt()).Round(time.Second))
		return nil
	case "embed":
		if len(args) != 2 {
			return fmt.Errorf("usage: checkoutctl embed <continuation-url>")
		}
		u, err := ucp.NewEmbeddedURLBuilder(tm).Build(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, u)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `checkoutctl: operator tool for checkout protocol credentials.

Usage:
  checkoutctl [flags] token
  checkoutctl [flags] embed <continuation-url>

Flags:
%s`, flagSet.FlagUsages())
}
