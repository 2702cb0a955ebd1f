package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动LiveRadio服务器",
	Long:  `启动播放调度器和HTTP服务器，直到收到 SIGINT/SIGTERM。`,
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
