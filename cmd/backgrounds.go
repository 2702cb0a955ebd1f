package cmd

import (
	"fmt"

	"LiveRadio/core/auth"
	"LiveRadio/logger"
	"LiveRadio/storage"

	"github.com/spf13/cobra"
)

var backgroundsCmd = &cobra.Command{
	Use:   "backgrounds",
	Short: "Renumber background images to image-1.jpg … image-N.jpg",
	Run: func(cmd *cobra.Command, args []string) {
		n, err := storage.NormalizeBackgrounds(cfg.BackgroundDir)
		if err != nil {
			logger.Fatal("failed to normalize backgrounds", logger.ErrorField(err))
		}
		fmt.Printf("%d backgrounds in %s\n", n, cfg.BackgroundDir)
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Print a bcrypt hash for AUTH_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hash, err := auth.HashKey(args[0])
		if err != nil {
			logger.Fatal("failed to hash key", logger.ErrorField(err))
		}
		fmt.Println(hash)
	},
}

func init() {
	rootCmd.AddCommand(backgroundsCmd)
	rootCmd.AddCommand(hashKeyCmd)
}
