package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/storage"
)

// Data 数据层资源。未配置数据库时 store 为 nil，任务历史不落库
type Data struct {
	store *storage.Storage
}

func NewData(cfg *config.Config, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	if cfg.DB.Host == "" {
		helper.Info("database not configured, report history disabled")
		return &Data{}, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.NewStorage(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		store.Close()
	}
	return &Data{store: store}, cleanup, nil
}
