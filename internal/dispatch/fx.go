package dispatch

import (
	"context"
	"fmt"

	"github.com/smallbiznis/recurra/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
	Executor  Executor
}

// NewScheduler selects the backend once at process start from configuration.
func NewScheduler(p Params) (Scheduler, error) {
	switch p.Cfg.Dispatch.Backend {
	case config.DispatchCloudTasks:
		ct, err := NewCloudTasks(context.Background(), p.Cfg.Dispatch, p.Log)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return ct.Close() },
		})
		return ct, nil
	case config.DispatchCapture:
		return NewCapture(p.Cfg.Dispatch.ExecuteURL), nil
	case config.DispatchInline:
		return NewInline(p.Executor, p.Log), nil
	default:
		return nil, fmt.Errorf("unknown dispatch backend %q", p.Cfg.Dispatch.Backend)
	}
}

var Module = fx.Module("dispatch",
	fx.Provide(NewScheduler),
)
