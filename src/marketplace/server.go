package marketplace

import (
	"context"
	"net/http"

	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"
	"github.com/superworldapp/nftsalon-engine/src/utils/task"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/ratelimit"
)

// Rest API server, exposes the marketplace operations and the monitor
type Server struct {
	*task.Task

	httpServer *http.Server
	Router     *gin.Engine

	facade    *Facade
	monitor   *monitor.Monitor
	registry  *prometheus.Registry
	rateLimit ratelimit.Limiter
}

func NewServer(config *config.Config) (self *Server) {
	self = new(Server)

	self.Task = task.NewTask(config, "server").
		WithSubtaskFunc(self.run).
		WithOnStop(self.stop)

	if !config.IsDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	self.Router = gin.New()
	self.Router.Use(gin.Recovery())

	self.rateLimit = ratelimit.New(config.Gateway.RequestsPerSecond)

	self.httpServer = &http.Server{
		Addr:        config.Gateway.ListenAddress,
		Handler:     self.Router,
		ReadTimeout: config.Gateway.RequestTimeout,
	}

	return
}

func (self *Server) WithFacade(facade *Facade) *Server {
	self.facade = facade
	return self
}

func (self *Server) WithMonitor(monitor *monitor.Monitor) *Server {
	self.monitor = monitor
	return self
}

func (self *Server) WithMetrics(registry *prometheus.Registry) *Server {
	self.registry = registry
	return self
}

func (self *Server) run() (err error) {
	self.Router.Use(func(c *gin.Context) {
		self.rateLimit.Take()
		c.Next()
	})

	v1 := self.Router.Group("v1")
	{
		v1.GET("health", self.monitor.OnGetState)
		v1.GET("state", self.onGetState)

		v1.POST("bids", self.onPlaceBid)
		v1.POST("auctions/close", self.onCloseAuction)
		v1.GET("auctions/:collection/:assetId", self.onGetAuction)

		v1.POST("purchases", self.onBuy)
		v1.POST("gifts", self.onGift)

		v1.POST("deposits", self.onDeposit)
		v1.POST("withdrawals/pending", self.onWithdrawPending)
		v1.POST("withdrawals/fees", self.onWithdrawFees)
		v1.GET("balances/:address", self.onGetBalances)

		v1.POST("royalties", self.onSetRoyalties)
		v1.GET("royalties/:collection/:assetId", self.onGetRoyalties)

		admin := v1.Group("admin")
		{
			admin.POST("settings", self.onUpdateSettings)
			admin.POST("collections", self.onRegisterCollection)
		}
	}

	if self.registry != nil {
		self.Router.GET("metrics", gin.WrapH(
			promhttp.HandlerFor(self.registry, promhttp.HandlerOpts{})))
	}

	if self.Config.Profiler.Enabled {
		pprof.Register(self.Router)
	}

	self.Log.WithField("addr", self.httpServer.Addr).Info("Starting REST server")
	err = self.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		self.Log.WithError(err).Error("Failed to start REST server")
		return
	}
	return nil
}

func (self *Server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.httpServer.Shutdown(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to gracefully shutdown REST server")
		return
	}
}
