// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/genos-dev/genos/internal/config"
	"github.com/genos-dev/genos/internal/secrets"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the genos gateway",
		Long:  "Load configuration, resolve secrets, wire every subsystem and serve the HTTP API until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v := viper.GetViper()
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		v.Set("networking.listen", listen)
	}

	cfg, err := loadConfig(ctx, v)
	if err != nil {
		return err
	}

	gw, err := WireGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gw.Close(); cerr != nil {
			slog.Warn("closing gateway", "error", cerr)
		}
	}()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting genos %s on %s\n", version, cfg.Networking.Listen)
	return gw.Start(ctx)
}

// newSecretResolver builds the resolver for config secret references.
// Declared as a variable so tests can avoid the OS keyring and AWS.
var newSecretResolver = func(ctx context.Context, v *viper.Viper) (*secrets.Resolver, error) {
	r := &secrets.Resolver{Keyring: secretStoreFactory()}
	if region := v.GetString("secrets.aws_region"); region != "" {
		sm, err := secrets.NewAWSSecretsManager(ctx, region)
		if err != nil {
			return nil, err
		}
		r.AWS = sm
	}
	return r, nil
}

// loadConfig resolves secret references in v and decodes the result.
func loadConfig(ctx context.Context, v *viper.Viper) (*config.Config, error) {
	resolver, err := newSecretResolver(ctx, v)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeCLISetupFailure, "creating secret resolver")
	}
	if err := secrets.ResolveViperSecrets(ctx, v, resolver); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeSecretResolveFailure, "resolving config secrets")
	}
	return config.FromViper(v)
}
