package sitectl

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/platform/config"
	"github.com/almarpuit/site/internal/repositories"
	"github.com/almarpuit/site/internal/repositories/sqlstore"
	"github.com/almarpuit/site/internal/web/i18n"
)

func (a *app) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the SQL content schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch a.cfg.Store.Driver {
			case config.DriverPostgres, config.DriverSQLite:
			default:
				return fmt.Errorf("sitectl: schema requires a sql store driver, got %q", a.cfg.Store.Driver)
			}
			store, err := sqlstore.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DSN, sqlstore.WithLogger(a.logger.Named("sqlstore")))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(ctx) }()
			if err := store.CreateSchema(ctx); err != nil {
				return err
			}
			a.logger.Info("content schema ensured", zap.String("driver", a.cfg.Store.Driver))
			fmt.Fprintln(cmd.OutOrStdout(), "schema ok")
			return nil
		},
	}
}

func (a *app) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import bundled locale strings as section translations, keeping existing values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bundle, err := i18n.Load()
			if err != nil {
				return err
			}
			return a.withRegistry(cmd.Context(), func(registry repositories.Registry) error {
				report, err := Seed(cmd.Context(), registry, bundle)
				if err != nil {
					return err
				}
				a.logger.Info("seed finished",
					zap.Int("sections_created", report.SectionsCreated),
					zap.Int("translations_written", report.TranslationsWritten),
					zap.Int("translations_skipped", report.TranslationsSkipped),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "sections created: %d, translations written: %d, skipped: %d\n",
					report.SectionsCreated, report.TranslationsWritten, report.TranslationsSkipped)
				return nil
			})
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all content and settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRegistry(cmd.Context(), func(registry repositories.Registry) error {
				doc, err := Export(cmd.Context(), registry)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if out != "" && out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("sitectl: create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}
				if err := doc.Encode(w); err != nil {
					return err
				}
				a.logger.Info("content exported", zap.Int("sections", len(doc.Sections)), zap.String("out", out))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load a YAML export into the content store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("sitectl: open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			doc, err := Decode(r)
			if err != nil {
				return err
			}
			return a.withRegistry(cmd.Context(), func(registry repositories.Registry) error {
				if err := Import(cmd.Context(), registry, doc); err != nil {
					return err
				}
				a.logger.Info("content imported", zap.Int("sections", len(doc.Sections)))
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d sections\n", len(doc.Sections))
				return nil
			})
		},
	}
}
