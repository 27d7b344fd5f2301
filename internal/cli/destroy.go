package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockpile-io/stockpile/internal/engine"
	"github.com/stockpile-io/stockpile/internal/provider"
	"github.com/stockpile-io/stockpile/internal/state"
	"github.com/stockpile-io/stockpile/providers/aws"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy the deployment",
	Long: `Deletes every resource tracked in the deployment record, dependents
before their dependencies. Resources already gone count as deleted.

Failed deletions stay in the record, so running destroy again retries
only what is left.`,
	RunE: runDestroy,
}

func runDestroy(cmd *cobra.Command, args []string) error {
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

	teardown := engine.NewTeardown(registry, stateMgr)
	teardown.OnStep(renderStep)

	fmt.Println("\nDestroying:")
	if err := teardown.Run(ctx); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Println("\nDestroy complete!")
	return nil
}
