// File: cmd/login.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quantbarn/kitelogin/internal/accounts"
	"github.com/quantbarn/kitelogin/internal/browser"
	"github.com/quantbarn/kitelogin/internal/diagnostics"
	"github.com/quantbarn/kitelogin/internal/flow"
	"github.com/quantbarn/kitelogin/internal/observability"
	"github.com/quantbarn/kitelogin/internal/orchestrator"
	"github.com/quantbarn/kitelogin/internal/registry"
)

// newLoginCmd creates and configures the `login` command.
func newLoginCmd() *cobra.Command {
	var noWait bool

	loginCmd := &cobra.Command{
		Use:   "login [account-ids...]",
		Short: "Logs the configured accounts into the broker, one browser window each",
		Long: `Reads the credential CSV, launches an isolated browser per active account,
and walks each one through the login and second-factor flow concurrently.
Windows are left open for the operator by default.

With account IDs as arguments, only those accounts are attempted.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override config and env.
			if err := viper.BindPFlag("accounts.credentials_file", cmd.Flags().Lookup("credentials")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("orchestrator.policy", cmd.Flags().Lookup("policy")); err != nil {
				return err
			}
			return viper.BindPFlag("linker.enabled", cmd.Flags().Lookup("link"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal so the flag bindings from PreRunE take effect.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if len(args) > 0 {
				cfg.Accounts.Targets = args
			}

			source, err := accounts.NewCSVSource(cfg.Accounts.CredentialsFile, logger)
			if err != nil {
				return fmt.Errorf("opening credentials file: %w", err)
			}
			all, err := source.Load()
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			targets := all
			if len(cfg.Accounts.Targets) > 0 {
				var missing []string
				targets, missing = accounts.FilterTargets(all, cfg.Accounts.Targets)
				for _, id := range missing {
					logger.Warn("Requested account not present in credentials file.", zap.String("account", id))
				}
			}
			if len(targets) == 0 {
				return fmt.Errorf("no matching accounts in %s", cfg.Accounts.CredentialsFile)
			}

			statuses := registry.New(logger)
			recorder := diagnostics.NewRecorder(cfg.Diagnostics.Dir, logger)
			loginFlow := flow.NewLoginFlow(cfg.Flow, statuses, recorder, logger)

			var linker orchestrator.LinkRunner
			if cfg.Linker.Enabled {
				creds, err := flow.LoadLinkerCredentials(cfg.Linker.CredentialsFile)
				if err != nil {
					logger.Warn("Link sub-flow disabled: companion credentials unavailable.", zap.Error(err))
				} else {
					linker = flow.NewLinker(cfg.Linker, cfg.Flow, creds, logger)
				}
			}

			launcher := browser.NewChromeLauncher(cfg.Browser, logger)
			orch := orchestrator.New(cfg, launcher, loginFlow, linker, statuses, logger)

			summary, runErr := orch.Run(ctx, targets)
			renderSummary(cmd.OutOrStdout(), summary)
			if runErr != nil {
				return runErr
			}

			windowsOpen := summary.Successes() > 0 && cfg.Flow.LeaveOpenOnSuccess ||
				summary.Successes() < len(summary.Results) && cfg.Flow.LeaveOpenOnFailure
			if windowsOpen && !noWait {
				waitForOperator(cmd.OutOrStdout(), cmd.InOrStdin())
			}

			if summary.Successes() == 0 {
				return fmt.Errorf("no account authenticated successfully")
			}
			return nil
		},
	}

	loginCmd.Flags().String("credentials", "", "path to the credentials CSV")
	loginCmd.Flags().Bool("headless", false, "run browsers headless")
	loginCmd.Flags().String("policy", "", "session start policy: staggered or simultaneous")
	loginCmd.Flags().Bool("link", false, "run the companion link sub-flow after each login")
	loginCmd.Flags().BoolVar(&noWait, "no-wait", false, "exit immediately instead of holding windows open")

	return loginCmd
}

// renderSummary prints the per-account table in credential-file order.
func renderSummary(w io.Writer, summary orchestrator.Summary) {
	fmt.Fprintf(w, "\n%-12s %-24s %s\n", "ACCOUNT", "OUTCOME", "DETAIL")
	for _, r := range summary.Results {
		detail := r.Status.Reason
		if len(r.Status.Warnings) > 0 {
			if detail != "" {
				detail += "; "
			}
			detail += strings.Join(r.Status.Warnings, "; ")
		}
		outcome := string(r.Status.Outcome)
		if outcome == "" {
			outcome = "not_attempted"
		}
		fmt.Fprintf(w, "%-12s %-24s %s\n", r.AccountID, outcome, detail)
	}
	for _, id := range summary.Skipped {
		fmt.Fprintf(w, "%-12s %-24s %s\n", id, "skipped", "inactive in credentials file")
	}
	fmt.Fprintf(w, "\n%d/%d accounts authenticated.\n", summary.Successes(), len(summary.Results))
}

// waitForOperator blocks until Enter so open browser windows survive until
// the operator is done with them.
func waitForOperator(w io.Writer, r io.Reader) {
	fmt.Fprintln(w, "Browser windows are open. Press Enter to exit (windows stay open).")
	reader := bufio.NewReader(r)
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, err)
	}
}
