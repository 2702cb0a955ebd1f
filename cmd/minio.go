package cmd

import (
	"context"
	"fmt"
	"time"

	"LiveRadio/logger"
	"LiveRadio/storage"

	"github.com/spf13/cobra"
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "列出MinIO中的曲目",
	Long:  `连接MinIO，列出曲目前缀下的所有对象及其大小。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MinIO配置: %s, Bucket: %s, Prefix: %s\n", cfg.MinioEndpoint, cfg.MinioBucket, cfg.MinioPrefix)

		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			logger.Fatal("无法连接到MinIO", logger.ErrorField(err))
		}
		source := storage.NewMinioSource(client, cfg.MinioBucket, cfg.MinioPrefix)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		objects, total, err := source.Objects(ctx)
		if err != nil {
			logger.Fatal("列出文件失败", logger.ErrorField(err))
		}
		for _, o := range objects {
			fmt.Printf("%-60s %10s  %s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format(time.RFC3339))
		}
		fmt.Printf("\n共 %d 个对象, 总大小 %s\n", len(objects), storage.FormatSize(total))
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
}
