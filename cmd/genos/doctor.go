// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/genos-dev/genos/internal/config"
	"github.com/genos-dev/genos/internal/provider"
	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/health"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, configuration, gateway, provider credentials, storage and schedule optimizer.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "", "gateway address to check (defaults to networking.listen)")
	cmd.Flags().Bool("check-keys", false, "resolve provider secrets and validate keys against the provider APIs")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr := gatewayAddress(cmd)
	checkKeys, _ := cmd.Flags().GetBool("check-keys")

	// Diagnostics run against the raw config; secret references stay
	// unresolved unless --check-keys is given.
	cfg, cfgErr := config.FromViper(viper.GetViper())

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Gateway", func() string { return checkGateway(addr) }},
		{"Providers", func() string { return checkProviders(cmd.Context(), cfg, checkKeys) }},
		{"Storage", func() string { return checkStorage(cmd.Context(), cfg) }},
		{"Optimizer", func() string { return checkOptimizer(cfg) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("genos %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(cfgErr error) string {
	source := "using defaults (no config file found)"
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		source = fmt.Sprintf("loaded from %s", cfgFile)
	}
	if cfgErr != nil {
		return fmt.Sprintf("%s, invalid: %s", source, cfgErr)
	}
	return source
}

func checkGateway(addr string) string {
	var report health.Report
	if err := newGatewayClient(addr).getJSON("/health", &report); err != nil {
		if genoserr.HasCode(err, genoserr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'genos start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s (version %s)", report.Status, addr, report.Version)
}

func checkProviders(ctx context.Context, cfg *config.Config, validate bool) string {
	if cfg == nil {
		return "skipped (invalid config)"
	}
	if len(cfg.Providers) == 0 {
		return "none configured"
	}

	if validate {
		resolved, err := loadConfig(ctx, viper.GetViper())
		if err != nil {
			return fmt.Sprintf("error resolving secrets: %s", err)
		}
		cfg = resolved
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" ("+providerKeyState(ctx, name, cfg.Providers[name], validate)+")")
	}
	return strings.Join(parts, ", ")
}

func providerKeyState(ctx context.Context, name string, pc config.ProviderConfig, validate bool) string {
	switch {
	case !needsAPIKey(name):
		return "aws credential chain"
	case pc.APIKey == "":
		return "no api_key"
	case !validate:
		if scheme, _, ok := strings.Cut(pc.APIKey, "://"); ok {
			return scheme + " reference"
		}
		return "inline key"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := provider.ValidateKey(ctx, defaultHTTPClient, name, pc.APIKey, pc.Endpoint); err != nil {
		if genoserr.HasCode(err, genoserr.CodeProviderKeyInvalid) {
			return "key rejected"
		}
		return "check failed"
	}
	return "key valid"
}

func checkStorage(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (invalid config)"
	}

	sc := storageConfig(cfg)
	if sc.Backend == "sqlite" {
		if _, err := os.Stat(sc.SQLitePath); os.IsNotExist(err) {
			return fmt.Sprintf("sqlite database not created yet at %s", sc.SQLitePath)
		}
	}

	st, err := store.Open(sc)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		return fmt.Sprintf("%s unreachable: %s", sc.Backend, err)
	}
	return fmt.Sprintf("%s reachable", sc.Backend)
}

func checkOptimizer(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (invalid config)"
	}
	if len(cfg.Schedule.Command) == 0 {
		return "classical only (schedule.command not set)"
	}
	path, err := exec.LookPath(cfg.Schedule.Command[0])
	if err != nil {
		return fmt.Sprintf("%s not found, falling back to classical", cfg.Schedule.Command[0])
	}
	return fmt.Sprintf("quantum via %s", path)
}
