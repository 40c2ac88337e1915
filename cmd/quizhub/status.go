// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// ServerStatus holds the probed status of a running server.
type ServerStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running QuizHub server",
		Long:  `Probe the health endpoints of a running QuizHub server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", defaultMetricsAddr, "metrics/health HTTP address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	status := probeServer(cfg.metricsAddr)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	switch {
	case !status.Live:
		cmd.Printf("quizhub at %s: not running (%s)\n", status.Addr, status.Error)
	case !status.Ready:
		cmd.Printf("quizhub at %s: running, not ready\n", status.Addr)
	default:
		cmd.Printf("quizhub at %s: running, ready\n", status.Addr)
	}
	return nil
}

// probeServer queries the liveness and readiness endpoints.
func probeServer(metricsAddr string) ServerStatus {
	status := ServerStatus{Addr: metricsAddr}
	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + metricsAddr

	live, err := probe(client, base+"/healthz/liveness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Live = live

	ready, err := probe(client, base+"/healthz/readiness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Ready = ready

	return status
}

func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}
