package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirinyoku/fairtix/internal/signature"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a redemption signing key and print its identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, id, err := signature.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "identity: %s\nseed:     %s\n", id, hex.EncodeToString(priv.Seed()))
			return nil
		},
	}
}

func signCmd() *cobra.Command {
	var seedHex, ticket, secretHex string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a redemption request for a ticket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := parseSeed(seedHex)
			if err != nil {
				return err
			}
			ticketID, err := uuid.Parse(ticket)
			if err != nil {
				return fmt.Errorf("--ticket: %w", err)
			}
			secret, err := hex.DecodeString(secretHex)
			if err != nil {
				return fmt.Errorf("--secret: %w", err)
			}

			envelope := signature.Sign(priv, signature.RedemptionDigest(ticketID, secret))
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(envelope))
			return nil
		},
	}

	cmd.Flags().StringVar(&seedHex, "seed", "", "hex-encoded Ed25519 seed printed by keygen")
	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket ID")
	cmd.Flags().StringVar(&secretHex, "secret", "", "hex-encoded redemption secret")
	for _, f := range []string{"seed", "ticket", "secret"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func signRequestCmd() *cobra.Command {
	var seedHex, method, target, body string

	cmd := &cobra.Command{
		Use:   "sign-request",
		Short: "Print the authentication headers for an API request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := parseSeed(seedHex)
			if err != nil {
				return err
			}

			ts := time.Now().Unix()
			envelope := signature.Sign(priv, signature.RequestDigest(method, target, ts, []byte(body)))
			id := signature.IdentityOf(priv.Public().(ed25519.PublicKey))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "X-Identity: %s\n", id)
			fmt.Fprintf(out, "X-Timestamp: %d\n", ts)
			fmt.Fprintf(out, "X-Signature: %s\n", hex.EncodeToString(envelope))
			return nil
		},
	}

	cmd.Flags().StringVar(&seedHex, "seed", "", "hex-encoded Ed25519 seed printed by keygen")
	cmd.Flags().StringVar(&method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&target, "path", "", "request path with query string")
	cmd.Flags().StringVar(&body, "body", "", "exact request body")
	for _, f := range []string{"seed", "path"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func parseSeed(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("--seed must be %d hex-encoded bytes", ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
