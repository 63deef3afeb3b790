package main

import (
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/gateway/internal/conf"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "gateway"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	// 默认指向 gateway 项目的配置文件
	flag.StringVar(&flagconf, "conf", "app/gateway/configs/config.yaml", "config path, eg: -conf config.yaml")
}

// loadBootstrap 读取配置文件。文件中的 ${KEY:default} 占位符由 RESEARCH_KEY 环境变量替换
func loadBootstrap(path string) (*conf.Bootstrap, error) {
	c := config.New(
		config.WithSource(
			file.NewSource(path),
			env.NewSource("RESEARCH_"),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		return nil, err
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, err
	}
	if bc.Server == nil {
		bc.Server = &conf.Server{}
	}
	return &bc, nil
}

func main() {
	flag.Parse()
	// 初始化日志记录器，包含时间戳、调用者信息、服务ID等上下文
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	helper := log.NewHelper(logger)

	bc, err := loadBootstrap(flagconf)
	if err != nil {
		helper.Fatalf("load config %s: %v", flagconf, err)
	}

	app, cleanup, err := initApp(bc.Server, bc.Data, bc.Research, logger)
	if err != nil {
		helper.Fatalf("init app: %v", err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		helper.Errorf("app exited: %v", err)
	}
}
