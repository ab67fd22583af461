package metrics

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/0xMiden/MultiSig/pkg/config"
)

// Service serves metrics over one or more http servers.
type Service struct {
	servers     []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
}

// NewService configures the given http servers to serve as the named
// metrics service.
func NewService(name string, servers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	return &Service{
		servers:     servers,
		config:      cfg,
		log:         log.With(zap.String("service", name)),
		serviceType: name,
	}
}

// Start runs the http servers on the configured addresses. It does not
// return until all of them stop.
func (ms *Service) Start() {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return
	}
	var wg sync.WaitGroup
	for _, srv := range ms.servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			ms.log.Info("service is running", zap.String("endpoint", srv.Addr))
			err := srv.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				ms.log.Warn("service couldn't start on configured port", zap.Error(err))
			}
		}(srv)
	}
	wg.Wait()
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	for _, srv := range ms.servers {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		if err := srv.Shutdown(context.Background()); err != nil {
			ms.log.Error("can't shut service down", zap.Error(err))
		}
	}
}
