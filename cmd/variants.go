package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/loceval/internal/taskstore"
	"github.com/sells-group/loceval/internal/variants"
)

var (
	variantsSource string
	variantsOut    string
	variantsLimit  int
	variantsKinds  []string
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "Generate adversarial variant tasks from localization goldens",
	Long:  "Derives perturbed localization tasks (case, reexport, test shadow, vendor shadow, near-name) whose golden truth stays identical to the source.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.Variants.Enabled {
			return eris.New("variants: generation disabled in config (variants.enabled)")
		}

		source := variantsSource
		if source == "" {
			source = filepath.Join(cfg.Paths.Goldens, "w1_localization")
		}
		out := variantsOut
		if out == "" {
			out = filepath.Join(cfg.Paths.Scenarios, "w1_localization")
		}

		goldens, err := taskstore.LoadGoldenRecords(source)
		if err != nil {
			return err
		}
		if len(goldens) == 0 {
			return eris.Errorf("variants: no goldens found under %s", source)
		}

		kindNames := variantsKinds
		if len(kindNames) == 0 {
			kindNames = cfg.Variants.Kinds
		}
		kinds := make([]variants.Kind, 0, len(kindNames))
		for _, k := range kindNames {
			kinds = append(kinds, variants.Kind(k))
		}

		limit := variantsLimit
		if limit <= 0 {
			limit = len(goldens) * cfg.Variants.MaxPerSource
		}

		pairs := variants.Generate(goldens, kinds, limit)
		if err := variants.Write(out, source, pairs); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Generated %d variants from %d goldens into %s\n",
			len(pairs), len(goldens), filepath.Join(out, "variants"))
		return nil
	},
}

func init() {
	variantsCmd.Flags().StringVar(&variantsSource, "source", "", "goldens directory to derive from (default paths.goldens/w1_localization)")
	variantsCmd.Flags().StringVar(&variantsOut, "out", "", "task directory to write variants under (default paths.scenarios/w1_localization)")
	variantsCmd.Flags().IntVar(&variantsLimit, "limit", 0, "max variants to generate (default goldens x variants.max_per_source)")
	variantsCmd.Flags().StringSliceVar(&variantsKinds, "kinds", nil, "variant kinds to generate (default variants.kinds from config)")
	rootCmd.AddCommand(variantsCmd)
}
