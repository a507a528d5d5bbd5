// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/health"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway health and circuit states",
		Long:  "Fetch the running gateway's /health endpoint and render status, uptime and provider circuits.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "gateway address to check (defaults to networking.listen)")

	return cmd
}

// gatewayAddress returns the --address flag or the configured listen address.
func gatewayAddress(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr
	}
	return viper.GetString("networking.listen")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr := gatewayAddress(cmd)
	out := cmd.OutOrStdout()

	var report health.Report
	if err := newGatewayClient(addr).getJSON("/health", &report); err != nil {
		if genoserr.HasCode(err, genoserr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	return renderStatus(out, addr, report)
}

func renderStatus(w io.Writer, addr string, report health.Report) error {
	status := healthyStyle.Render(report.Status)
	if report.Status != health.StatusHealthy {
		status = warnStyle.Render(report.Status)
	}

	uptime := (time.Duration(report.Uptime) * time.Second).Round(time.Second)
	lines := []string{
		titleStyle.Render("Genos "+report.Version) + dimStyle.Render(" at "+addr),
		fmt.Sprintf("Status:   %s", status),
		fmt.Sprintf("Uptime:   %s", uptime),
		fmt.Sprintf("Requests: %d AI (p95 %.0f ms, errors %.0f%%), %d HTTP",
			report.Metrics.AI.TotalRequests, report.Metrics.AI.P95LatencyMs,
			report.Metrics.AI.ErrorRate*100, report.Metrics.HTTP.TotalRequests),
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}

	if len(report.Circuits) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No provider circuits yet."))
		return err
	}

	names := make([]string, 0, len(report.Circuits))
	for name := range report.Circuits {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROVIDER", "CIRCUIT", "FAILURES")
	for _, name := range names {
		c := report.Circuits[name]
		t.Row(name, circuitStyle(c.State).Render(c.State), strconv.Itoa(c.Failures))
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func circuitStyle(state string) lipgloss.Style {
	switch state {
	case "OPEN":
		return errorStyle
	case "HALF_OPEN":
		return warnStyle
	default:
		return healthyStyle
	}
}
