package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"sygnal/internal/app"
	sycfg "sygnal/internal/config"
	"sygnal/internal/logger"
)

// 用法：
//
//	sygnal serve              启动 HTTP 服务
//	sygnal scan [SYM ...]     批量回测（缺省取配置/库中全部 symbol）
//	sygnal import             导入配置目录下的 CSV 历史数据
//
// 配置路径取环境变量 SYGNAL_CONFIG，缺省 configs/config.yaml。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("SYGNAL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := sycfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，策略=%s）", cfg.App.Env, cfg.Backtest.Strategy)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer application.Close()

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
		args = args[1:]
	}
	switch cmd {
	case "serve":
		if err := application.ImportCSVDir(ctx); err != nil {
			log.Fatalf("导入 CSV 失败: %v", err)
		}
		if err := application.Serve(ctx); err != nil {
			log.Fatalf("HTTP 服务失败: %v", err)
		}
	case "scan":
		if err := application.ImportCSVDir(ctx); err != nil {
			log.Fatalf("导入 CSV 失败: %v", err)
		}
		batch, err := application.Scan(ctx, args)
		if err != nil {
			log.Fatalf("批量回测失败: %v", err)
		}
		logger.Infof("扫描完成: 成功 %d, 失败 %d", len(batch.Results), len(batch.Failures))
	case "import":
		if err := application.ImportCSVDir(ctx); err != nil {
			log.Fatalf("导入 CSV 失败: %v", err)
		}
	default:
		log.Fatalf("未知命令: %s（支持 serve/scan/import）", cmd)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
