package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/iliyamo/boxoffice-sync/internal/app"
	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/queue"
	"github.com/iliyamo/boxoffice-sync/internal/utils"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Run ticketing-provider sync jobs by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAutoLinkCmd(),
		newMatchCmd(),
		newImportCmd(),
		newFullCmd(),
		newEnqueueCmd(),
		newTokenCmd(),
	)
	return root
}

// withApp builds the process dependencies for the duration of fn.
func withApp(fn func(context.Context, *app.App) error) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAutoLinkCmd() *cobra.Command {
	var providerID uint64
	cmd := &cobra.Command{
		Use:   "autolink",
		Short: "Link a provider's external events to productions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Runner.RunAutoLink(ctx, providerID, model.TriggerManual)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Uint64Var(&providerID, "provider", 0, "provider id")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newMatchCmd() *cobra.Command {
	var (
		linkID  uint64
		analyze bool
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a production link's shows to provider occurrences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if analyze {
					res, err := a.Runner.AnalyzeShows(ctx, linkID)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				res, err := a.Runner.RunShowMatch(ctx, linkID, model.TriggerManual)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Uint64Var(&linkID, "link", 0, "production link id")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "print proposals without applying them")
	_ = cmd.MarkFlagRequired("link")
	return cmd
}

func newImportCmd() *cobra.Command {
	var linkID uint64
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import sales for a production link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Runner.RunSalesImport(ctx, linkID, model.TriggerManual)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if !res.Success && !res.Skipped {
					return eris.Errorf("syncctl: import failed: %s", res.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&linkID, "link", 0, "production link id")
	_ = cmd.MarkFlagRequired("link")
	return cmd
}

func newFullCmd() *cobra.Command {
	var providerID uint64
	cmd := &cobra.Command{
		Use:   "full",
		Short: "Auto-link, then match and import every sync-enabled link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Runner.RunFull(ctx, providerID, model.TriggerManual)
				if res != nil {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().Uint64Var(&providerID, "provider", 0, "provider id")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	var req queue.SyncRequest
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish a sync request for the worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Trigger == "" {
				req.Trigger = model.TriggerManual
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Publisher.RequestSync(ctx, req); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Kind, "kind", queue.KindFull, "auto_link, show_match, sales_import or full")
	cmd.Flags().Uint64Var(&req.ProviderID, "provider", 0, "provider id (auto_link, full)")
	cmd.Flags().Uint64Var(&req.ProductionLinkID, "link", 0, "production link id (show_match, sales_import)")
	cmd.Flags().StringVar(&req.Trigger, "trigger", "", "trigger recorded on the sync log")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
		secret  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator API token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			switch role {
			case utils.RoleOperator, utils.RoleAdmin:
			default:
				return eris.Errorf("syncctl: unknown role %q", role)
			}
			tok, err := utils.NewAccessToken(secret, subject, role, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tok)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator name or email")
	cmd.Flags().StringVar(&role, "role", utils.RoleOperator, "OPERATOR or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
