package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LiveRadio/cache"
	"LiveRadio/core/radio"
	"LiveRadio/logger"
	"LiveRadio/model"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，进行基本读写操作，并显示当前同步键。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Fatal("无法连接到Redis", logger.ErrorField(err))
		}
		defer cache.CloseRedis()
		fmt.Println("Redis连接成功！")

		if err := cache.TestRedis(); err != nil {
			logger.Fatal("Redis操作测试失败", logger.ErrorField(err))
		}
		fmt.Println("Redis基本操作测试成功！")

		store := cache.NewRedisStore(cache.RedisClient, "liveradio:", cfg.RedisKeyTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var snap model.Snapshot
		switch err := store.Get(ctx, model.KeySnapshot, &snap); {
		case err == nil:
			fmt.Printf("当前广播: %s (generation %d, session %s, background %d)\n",
				snap.Name, snap.Generation, snap.SessionID, snap.BackgroundID)
		case errors.Is(err, radio.ErrKeyNotFound):
			fmt.Println("尚未发布任何快照")
		default:
			logger.Fatal("读取快照失败", logger.ErrorField(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
