package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockpile-io/stockpile/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded deployment",
	Long:  `Prints the deployment record: run suffix, tracked resources and outputs.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rec, err := state.NewManager(cfg.StatePath).Load()
	if err != nil {
		return err
	}
	if rec == nil || len(rec.Resources) == 0 {
		fmt.Println("No deployment recorded.")
		return nil
	}

	fmt.Printf("Deployment %s (created %s)\n", rec.RunSuffix, rec.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Record: %s\n\n", cfg.StatePath)

	keys := make([]string, 0, len(rec.Resources))
	for k := range rec.Resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		h := rec.Resources[k]
		if h == nil {
			continue
		}
		fmt.Printf("  %-26s %-9s %s\n", k, h.Status, h.Name)
	}

	printOutputs(rec.Outputs)
	return nil
}
