package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockpile-io/stockpile/internal/engine"
	"github.com/stockpile-io/stockpile/internal/provider"
	"github.com/stockpile-io/stockpile/internal/state"
	"github.com/stockpile-io/stockpile/providers/aws"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or resume the deployment",
	Long: `Provisions every resource of the inventory pipeline in dependency
order, then publishes the dashboard and uploads seed data.

Safe to re-run: resources recorded as created are verified against AWS
and reused, and a half-finished deployment continues where it stopped.`,
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stateMgr := state.NewManager(cfg.StatePath)
	if err := stateMgr.Lock(); err != nil {
		return err
	}
	defer stateMgr.Unlock()

	fmt.Print("Connecting to AWS... ")
	set, err := aws.New(ctx, cfg)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	registry := provider.NewRegistry()
	set.Register(registry)

	orch := engine.NewOrchestrator(registry, stateMgr, set.Identity(), cfg)
	orch.OnStep(renderStep)

	fmt.Println("\nDeploying:")
	rec, err := orch.Apply(ctx)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	fmt.Printf("\nApply complete! %d resources tracked in %s.\n", len(rec.Resources), stateMgr.Path())
	printOutputs(rec.Outputs)
	return nil
}
