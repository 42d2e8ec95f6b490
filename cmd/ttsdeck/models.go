package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ttsdeck/internal/api"
	"ttsdeck/pkg/types"
)

func buildModelsCmd(opts *rootOpts) *cobra.Command {
	models := &cobra.Command{
		Use:   "models",
		Short: "Inspect and manage models on the speech server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("models requires a subcommand: list|status|download|load|unload")
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List models and their lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			recs, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			printModels(recs)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status <variant>",
		Short: "Show the lifecycle state of one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			rec, err := client.GetModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printModels([]types.ModelInfo{rec})
			return nil
		},
	}

	models.AddCommand(list, status,
		buildModelOpCmd(opts, "download", "Ask the server to download a model"),
		buildModelOpCmd(opts, "load", "Ask the server to load a model into memory"),
		buildModelOpCmd(opts, "unload", "Ask the server to unload a model"),
	)
	return models
}

func buildModelOpCmd(opts *rootOpts, op, short string) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   op + " <variant>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			variant := args[0]
			ctx := cmd.Context()
			switch op {
			case "download":
				_, err = client.Download(ctx, variant)
			case "load":
				_, err = client.Load(ctx, variant)
			case "unload":
				_, err = client.Unload(ctx, variant)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s accepted for %s\n", op, variant)
			if !wait {
				return nil
			}
			return awaitSettled(ctx, client, variant)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the operation settles")
	return cmd
}

// awaitSettled polls the model until it leaves its transitional state.
func awaitSettled(ctx context.Context, client *api.Client, variant string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		rec, err := client.GetModel(ctx, variant)
		if err != nil {
			return err
		}
		if rec.Status.Transitional() {
			if rec.DownloadProgress != nil {
				fmt.Printf("%s: %s %.0f%%\n", variant, rec.Status, *rec.DownloadProgress)
			} else {
				fmt.Printf("%s: %s\n", variant, rec.Status)
			}
			continue
		}
		if rec.Status == types.StatusError {
			return fmt.Errorf("%s failed: %s", variant, rec.ErrorMessage)
		}
		fmt.Printf("%s: %s\n", variant, rec.Status)
		return nil
	}
}

func printModels(recs []types.ModelInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tSTATUS\tSIZE\tPROGRESS\tERROR")
	for _, r := range recs {
		size := "-"
		if r.SizeBytes != nil {
			size = fmt.Sprintf("%.1f MiB", float64(*r.SizeBytes)/(1<<20))
		}
		prog := "-"
		if r.DownloadProgress != nil {
			prog = fmt.Sprintf("%.0f%%", *r.DownloadProgress)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Variant, r.Status, size, prog, r.ErrorMessage)
	}
	_ = w.Flush()
}

func newClient(opts *rootOpts) (*api.Client, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	return api.New(api.Config{BaseURL: cfg.ServerURL, Timeout: cfg.RequestTimeout()}), nil
}
