package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run unpack, stage and curate in order",
	Long: `Runs the three stages sequentially; each starts only after the previous one finished.
If unpack finds no text, the later stages are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateUnpack(); err != nil {
			return err
		}
		if err := cfg.ValidateStage(); err != nil {
			return err
		}
		if err := cfg.ValidateCurate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		logger := newLogger(cfg)
		start := time.Now()

		unpacked, err := runUnpack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if !unpacked.Uploaded {
			fmt.Println("Skipping stage and curate")
			return nil
		}

		fmt.Println()
		if _, err := runStage(ctx, cfg, logger); err != nil {
			return err
		}

		fmt.Println()
		if _, err := runCurate(ctx, cfg, logger); err != nil {
			return err
		}

		fmt.Println()
		fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
		return nil
	},
}

func init() {
	addSourceFlags(runCmd.Flags())
	addBlobFlags(runCmd.Flags())
	addStagingFlags(runCmd.Flags())
	addCuratedFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}
