package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reewardius/thc-recon/pkg/collector"
	"github.com/reewardius/thc-recon/pkg/metrics"
	"github.com/reewardius/thc-recon/pkg/progress"
	"github.com/reewardius/thc-recon/pkg/state"
	"github.com/reewardius/thc-recon/pkg/targets"
	"github.com/reewardius/thc-recon/pkg/thc"
)

// NewCollectCommand builds the collect subcommand.
func NewCollectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect subdomains for one or more domains",
		Long: `Collect walks the lookup API page by page for every target domain,
honoring the server's hourly request quota, and writes the combined
unique subdomains to the output file. Subdomains absent from the
previous run land in ` + state.DeltaFileName + ` next to it.`,
		Example: `  # Collect subdomains for a single domain
  thc-recon collect -t example.com -o subdomains.txt

  # Multiple domains plus a target list file
  thc-recon collect -t example.com -t another.com -f domains.txt -o subs.txt`,
		RunE: runCollect,
	}

	cmd.Flags().StringSliceP("target", "t", nil, "target domain(s) to collect")
	cmd.Flags().StringP("file", "f", "", "file containing target domains (one per line, # comments)")
	cmd.Flags().StringP("output", "o", "", "output file for collected subdomains (required)")
	cmd.Flags().BoolP("quiet", "q", false, "suppress all output except errors")
	cmd.Flags().BoolP("verbose", "v", false, "show live progress and per-page diagnostics")
	cmd.Flags().Bool("clear-stale-delta", false, "remove the previous "+state.DeltaFileName+" when nothing new was found")
	cmd.Flags().Int("max-pages", collector.DefaultMaxPages, "hard per-domain page ceiling")
	cmd.Flags().String("base-url", thc.DefaultBaseURL, "lookup API base URL")
	cmd.Flags().Duration("timeout", thc.DefaultTimeout, "per-request timeout")
	cmd.Flags().Int("page-size", thc.DefaultPageSize, "records requested per page")
	cmd.Flags().String("user-agent", thc.DefaultUserAgent, "User-Agent header sent to the API")
	cmd.Flags().String("metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")

	_ = viper.BindPFlag("collect.targets", cmd.Flags().Lookup("target"))
	_ = viper.BindPFlag("collect.file", cmd.Flags().Lookup("file"))
	_ = viper.BindPFlag("collect.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("collect.quiet", cmd.Flags().Lookup("quiet"))
	_ = viper.BindPFlag("collect.verbose", cmd.Flags().Lookup("verbose"))
	_ = viper.BindPFlag("collect.clear_stale_delta", cmd.Flags().Lookup("clear-stale-delta"))
	_ = viper.BindPFlag("collect.max_pages", cmd.Flags().Lookup("max-pages"))
	_ = viper.BindPFlag("api.base_url", cmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("api.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("api.page_size", cmd.Flags().Lookup("page-size"))
	_ = viper.BindPFlag("api.user_agent", cmd.Flags().Lookup("user-agent"))
	_ = viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	output := viper.GetString("collect.output")
	if output == "" {
		return fmt.Errorf("output file is required (use -o or set collect.output)")
	}

	list, err := targets.Load(viper.GetStringSlice("collect.targets"), viper.GetString("collect.file"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no targets specified (use -t or -f)")
	}

	quiet := viper.GetBool("collect.quiet")
	verbose := viper.GetBool("collect.verbose") && !quiet
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			log.Warn().Msg("Received interrupt signal, aborting run")
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.Serve(viper.GetString("metrics.addr"))

	client, err := thc.New(thc.Config{
		BaseURL:   viper.GetString("api.base_url"),
		UserAgent: viper.GetString("api.user_agent"),
		PageSize:  viper.GetInt("api.page_size"),
		Timeout:   viper.GetDuration("api.timeout"),
	})
	if err != nil {
		return err
	}

	printer := progress.New(verbose)

	col, err := collector.New(client, collector.Config{
		MaxPages: viper.GetInt("collect.max_pages"),
		Reporter: printer,
	})
	if err != nil {
		return err
	}

	store, err := state.NewStore(state.Config{
		OutputPath:      output,
		ClearStaleDelta: viper.GetBool("collect.clear_stale_delta"),
	})
	if err != nil {
		return err
	}

	printer.Banner(len(list))

	run, err := col.Run(ctx, list)
	if err != nil {
		return err
	}

	res, err := store.Reconcile(run.Combined)
	if err != nil {
		return err
	}

	if !quiet {
		printer.PrintSummary(progress.Summary{
			Targets:    len(run.Domains),
			Failed:     run.Failed,
			Total:      res.Total,
			NewCount:   len(res.New),
			OutputPath: store.OutputPath(),
			DeltaPath:  res.DeltaPath,
		})
	}

	return nil
}
