// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/datasource/config"
	"github.com/szijea/springboot-main-sub000/datasource/pool"
	"github.com/szijea/springboot-main-sub000/datasource/registry"
	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/seed"
	"github.com/szijea/springboot-main-sub000/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "pharmacyd",
		Short:         "Pharmacy multi-tenant datasource service",
		Long:          `pharmacyd routes requests to per-store databases and keeps every store's schema reconciled.`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&envFile, "config", "c", "", "Environment file to load (default .env when present)")

	rootCmd.AddCommand(serveCmd(&envFile))
	rootCmd.AddCommand(reconcileCmd(&envFile))
	rootCmd.AddCommand(tenantsCmd(&envFile))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func newRegistry(cfg *config.Config) *registry.Registry {
	return registry.New(pool.NewBuilder(pool.Options{
		MaxAttempts: cfg.Pool.MaxRetry,
		Backoff:     cfg.Pool.RetryBackoff,
	}))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveCmd provisions every configured tenant and serves HTTP until
// interrupted.
func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Provision tenants and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := config.Load(ctx, *envFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			s := server.New(ctx, cfg, newRegistry(cfg))
			return s.Start(ctx)
		},
	}
}

// reconcileCmd runs the reconcile, heal and seed pipeline without serving.
func reconcileCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [tenant...]",
		Short: "Reconcile tenant schemas and exit",
		Long: `Reconcile the schema of the named tenants, or of every configured tenant
when none are named, then print one JSON report per tenant.

The default tenant and the baseline tenant are always registered so that
routing and table propagation behave exactly as they do under serve.

Examples:
  pharmacyd reconcile
  pharmacyd reconcile wx gy -c /etc/pharmacy/.env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := config.Load(ctx, *envFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			reg := newRegistry(cfg)
			defer reg.Close()

			prov := server.NewProvisioner(reg, cfg.BaselineTenant,
				seed.New(seed.DefaultSpec(cfg.Seed.DefaultPassword), cfg.Seed.BcryptCost))

			reports, err := reconcileTenants(ctx, cfg, reg, prov, args)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}
			for _, rep := range reports {
				if len(rep.Errors) > 0 {
					return fmt.Errorf("tenant %s reconciled with %d error(s)", rep.TenantID, len(rep.Errors))
				}
			}
			return nil
		},
	}
}

func reconcileTenants(ctx context.Context, cfg *config.Config, reg *registry.Registry, prov *server.Provisioner, ids []string) ([]*schema.Report, error) {
	if len(ids) == 0 {
		return prov.ProvisionAll(ctx, cfg.Tenants)
	}

	// default and baseline are registered for routing and propagation only
	required := []string{base.DefaultTenantID}
	if b := prov.Baseline(); b != "" && b != base.DefaultTenantID {
		required = append(required, b)
	}
	for _, id := range append(required, ids...) {
		t, ok := cfg.Tenant(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTenant, id)
		}
		if _, _, err := reg.Register(ctx, t); err != nil {
			return nil, err
		}
	}

	reports := make([]*schema.Report, 0, len(ids))
	for _, id := range ids {
		rep, err := prov.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// tenantsCmd prints the configured tenants with passwords masked
func tenantsCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List configured tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context(), *envFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			redacted := make([]base.TenantConfig, len(cfg.Tenants))
			for i, t := range cfg.Tenants {
				redacted[i] = t.Redacted()
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"baseline": cfg.BaselineTenant,
				"tenants":  redacted,
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), server.Version)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
