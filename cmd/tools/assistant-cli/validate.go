// cmd/tools/assistant-cli/validate.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	matchfaq "community-assistant/internal/assistant/match-faq"
	matchtemplate "community-assistant/internal/assistant/match-template"
	"community-assistant/pkg/registry"
)

type catalogSummary struct {
	RecordTypes    int `json:"recordTypes"`
	Templates      int `json:"templates"`
	FAQEntries     int `json:"faqEntries"`
	LegacyPatterns int `json:"legacyPatterns"`
}

func (a *app) validateCatalogCmd() *cobra.Command {
	var registryPath, templatesPath, faqPath, legacyPath string
	cmd := &cobra.Command{
		Use:   "validate-catalog",
		Short: "Validate the record registry, query templates and FAQ catalog",
		Long:  "Validates catalog files against their JSON schemas and cross-checks template field references against the registry. Files not given fall back to the embedded catalogs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := validateCatalogs(registryPath, templatesPath, faqPath, legacyPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON {
				return printJSON(out, summary)
			}
			fmt.Fprintf(out, "registry:  %d record types\n", summary.RecordTypes)
			fmt.Fprintf(out, "templates: %d templates\n", summary.Templates)
			fmt.Fprintf(out, "faq:       %d entries, %d legacy patterns\n", summary.FAQEntries, summary.LegacyPatterns)
			fmt.Fprintln(out, "All catalogs are valid.")
			return nil
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", "", "record registry JSON")
	cmd.Flags().StringVar(&templatesPath, "templates", "", "query template YAML")
	cmd.Flags().StringVar(&faqPath, "faq", "", "curated FAQ catalog YAML")
	cmd.Flags().StringVar(&legacyPath, "legacy", "", "legacy FAQ table YAML (used with --faq)")
	return cmd
}

func validateCatalogs(registryPath, templatesPath, faqPath, legacyPath string) (catalogSummary, error) {
	var summary catalogSummary

	reg, err := registry.Default()
	if registryPath != "" {
		reg, err = registry.LoadRegistry(registryPath)
	}
	if err != nil {
		return summary, fmt.Errorf("registry: %w", err)
	}
	summary.RecordTypes = len(reg.Names())

	var templates *matchtemplate.Catalog
	if templatesPath != "" {
		data, err := os.ReadFile(templatesPath)
		if err != nil {
			return summary, err
		}
		templates, err = matchtemplate.ParseCatalog(data, reg)
		if err != nil {
			return summary, fmt.Errorf("templates: %w", err)
		}
	} else {
		templates, err = matchtemplate.DefaultCatalog()
		if err != nil {
			return summary, fmt.Errorf("templates: %w", err)
		}
	}
	summary.Templates = len(templates.Templates())

	var faqs *matchfaq.Catalog
	if faqPath != "" {
		curated, err := os.ReadFile(faqPath)
		if err != nil {
			return summary, err
		}
		legacy := []byte("[]")
		if legacyPath != "" {
			if legacy, err = os.ReadFile(legacyPath); err != nil {
				return summary, err
			}
		}
		faqs, err = matchfaq.ParseCatalog(curated, legacy)
		if err != nil {
			return summary, fmt.Errorf("faq: %w", err)
		}
	} else {
		faqs, err = matchfaq.DefaultCatalog()
		if err != nil {
			return summary, fmt.Errorf("faq: %w", err)
		}
	}
	summary.FAQEntries = len(faqs.Entries())
	summary.LegacyPatterns = len(faqs.Legacy())

	return summary, nil
}
