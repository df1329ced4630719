package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/modelprice/internal/api"
	"github.com/everstacklabs/modelprice/internal/metadata"
	"github.com/everstacklabs/modelprice/internal/model"
	"github.com/everstacklabs/modelprice/internal/pipeline"
	"github.com/everstacklabs/modelprice/internal/stats"
	"github.com/everstacklabs/modelprice/internal/storage"
	"github.com/everstacklabs/modelprice/internal/validate"
)

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every source, enrich, and persist the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if onlyMeta, _ := cmd.Flags().GetBool("metadata"); onlyMeta {
				n, err := a.pipeline.RefreshMetadata(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Updated metadata for %d models\n", n)
				return nil
			}

			provider, _ := cmd.Flags().GetString("provider")
			var sum *pipeline.Summary
			if provider != "" {
				sum, err = a.pipeline.RefreshOne(cmd.Context(), provider)
			} else {
				sum, err = a.pipeline.RefreshAll(cmd.Context())
			}
			if err != nil {
				return err
			}

			if err := printJSON(sum); err != nil {
				return err
			}
			if sum.Status == pipeline.StatusFailed {
				return errors.New("every provider failed")
			}
			return nil
		},
	}

	cmd.Flags().String("provider", "", "Refresh only this provider")
	cmd.Flags().Bool("metadata", false, "Only re-resolve metadata for persisted models")
	cmd.MarkFlagsMutuallyExclusive("provider", "metadata")

	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one source and print its models without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			provider, _ := cmd.Flags().GetString("provider")
			grp, err := a.pipeline.Orchestrator().FetchOne(cmd.Context(), provider)
			if err != nil {
				return err
			}
			if !grp.OK() {
				return grp.Err
			}

			records, res := validate.Sanitize(provider, grp.Records, 0)
			printRecords(records)
			fmt.Printf("\nTotal: %d models (%s)\n", len(records), grp.Elapsed.Round(time.Millisecond))
			if len(res.Issues) > 0 {
				fmt.Println(validate.FormatResult(res))
			}
			return nil
		},
	}

	cmd.Flags().String("provider", "", "Provider to fetch models from")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted models",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			flags := cmd.Flags()
			provider, _ := flags.GetString("provider")
			capability, _ := flags.GetString("capability")
			search, _ := flags.GetString("search")
			sortBy, _ := flags.GetString("sort-by")
			sortOrder, _ := flags.GetString("sort-order")
			asJSON, _ := flags.GetBool("json")

			s, err := storage.ParseSort(sortBy, sortOrder)
			if err != nil {
				return err
			}
			records, err := a.store.Query(cmd.Context(), storage.Filter{
				Source:     provider,
				Capability: capability,
				Search:     search,
			}, s)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(records)
			}
			printRecords(records)
			fmt.Printf("\nTotal: %d models\n", len(records))
			return nil
		},
	}

	cmd.Flags().String("provider", "", "Filter by provider")
	cmd.Flags().String("capability", "", "Filter by capability")
	cmd.Flags().String("search", "", "Filter by model name substring")
	cmd.Flags().String("sort-by", "model_name", "Sort key: model_name, input, output, context_length")
	cmd.Flags().String("sort-order", "asc", "Sort order: asc or desc")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			db, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats.Compute(db))
		},
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List providers present in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			db, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range stats.Providers(db, storage.Filter{}, a.registry.DisplayNames()) {
				updated := "-"
				if p.LastUpdated != nil {
					updated = p.LastUpdated.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-20s %-20s %6d  %s\n", p.Name, p.DisplayName, p.ModelCount, updated)
			}
			return nil
		},
	}
}

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override <model-id> [json-merge-patch]",
		Short: "Edit the user override for one model",
		Long: `Applies a JSON merge patch to the user override of a model and re-resolves it.
A null member removes that field from the override, e.g.

  modelprice override openai:gpt-4o '{"context_length": 128000, "is_open_source": null}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			if del, _ := cmd.Flags().GetBool("delete"); del {
				if err := a.overrides.Delete(id); err != nil {
					return err
				}
				fmt.Printf("Deleted override for %s\n", id)
				return nil
			}
			if len(args) < 2 {
				return errors.New("a JSON merge patch is required unless --delete is set")
			}

			rec, err := a.pipeline.UpdateModel(cmd.Context(), id, []byte(args[1]))
			if err != nil {
				var invalid *metadata.ValidationError
				if errors.As(err, &invalid) {
					return fmt.Errorf("rejected: %w", err)
				}
				return err
			}
			return printJSON(rec)
		},
	}

	cmd.Flags().Bool("delete", false, "Remove the override instead of patching it")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the persisted database (CI check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			db, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			result := &validate.Result{}
			for i := range db.Models {
				r := &db.Models[i]
				result.Issues = append(result.Issues, validate.ValidateRecord(r, r.Source).Issues...)
			}
			fmt.Println(validate.FormatResult(result))

			if result.HasErrors() {
				return fmt.Errorf("database has %d invalid models", len(result.Errors()))
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database and refresh triggers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			if a.cfg.Metadata.Watch {
				go func() {
					if err := metadata.Watch(cmd.Context(), a.static, a.overrides); err != nil {
						slog.Error("metadata watcher stopped", "error", err)
					}
				}()
			}

			return api.NewServer(a.store, a.pipeline, a.registry).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")

	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the database document",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := storage.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		},
	}
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Commit the current database file and open a PR",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Publish.RepoPath == "" {
				return errors.New("publish.repo_path is not set")
			}

			res, err := newPublisher(cmd.Context(), cfg).Publish(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Println("Nothing to publish.")
				return nil
			}
			return printJSON(res)
		},
	}
}

func printRecords(records []model.Record) {
	fmt.Printf("%-50s %10s %10s %10s\n", "ID", "INPUT", "OUTPUT", "CONTEXT")
	for _, r := range records {
		fmt.Printf("%-50s %10s %10s %10s\n", r.ID,
			formatPrice(r.Pricing.Input), formatPrice(r.Pricing.Output), formatInt(r.ContextLength))
	}
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
