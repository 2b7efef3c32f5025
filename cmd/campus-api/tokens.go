package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/placementcell/campus-api/internal/auth"
	"github.com/placementcell/campus-api/internal/config"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

var errUsage = errors.New("usage: campus-api tokens <create -name NAME -role ROLE | list | delete -id ID>")

// runTokens manages API tokens directly against the database, for the
// first admin token or for recovery when no admin token is left.
func runTokens(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	registry, _, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close() //nolint:errcheck

	switch args[0] {
	case "create":
		return createToken(ctx, store, registry, args[1:], out)
	case "list":
		return listTokens(ctx, store, out)
	case "delete":
		return deleteToken(ctx, store, args[1:], out)
	default:
		return errUsage
	}
}

func createToken(ctx context.Context, store storage.TokenStore, registry *policy.Registry, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tokens create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "token name")
	role := fs.String("role", "", "role carried by the token")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	trimmed := strings.TrimSpace(*name)
	if trimmed == "" || *role == "" {
		return errUsage
	}
	r := policy.Role(*role)
	if !registry.IsKnownRole(r) {
		return fmt.Errorf("unknown role %q", *role)
	}

	token, raw, err := auth.IssueToken(ctx, store, trimmed, r)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "created token %d (%s, %s)\n", token.ID, token.Name, token.Role)
	fmt.Fprintln(out, raw)
	return nil
}

func listTokens(ctx context.Context, store storage.TokenStore, out io.Writer) error {
	tokens, err := store.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tCREATED")
	for _, t := range tokens {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Name, t.Role, t.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func deleteToken(ctx context.Context, store storage.TokenStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tokens delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.Int64("id", 0, "token id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *id <= 0 {
		return errUsage
	}

	if err := store.DeleteToken(ctx, *id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("token %d not found", *id)
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	fmt.Fprintf(out, "deleted token %d\n", *id)
	return nil
}
