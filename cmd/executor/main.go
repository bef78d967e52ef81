// Command executor 以插件形式运行存档示例游戏。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/lk2023060901/danmu-garden-scene/application"
	"github.com/lk2023060901/danmu-garden-scene/examples/savegame"
	zlog "github.com/lk2023060901/danmu-garden-scene/pkg/log"
)

func main() {
	app := application.New()
	if err := app.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init application failed: %v\n", err)
		os.Exit(1)
	}

	undo, err := maxprocs.Set(maxprocs.Logger(zlog.S().Infof))
	if err != nil {
		zlog.S().Warnf("set GOMAXPROCS failed: %v", err)
	}
	defer undo()

	cfg := app.Config()
	game := savegame.New(cfg.GetString("game.scene-path", savegame.DefaultScenePath))
	game.SavePath = cfg.GetString("game.save-path", savegame.DefaultSavePath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx, game)
	if err != nil {
		zlog.S().Errorf("executor exited with error: %v", err)
	}
	zlog.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}
