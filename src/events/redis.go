package events

import (
	"fmt"

	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"
	"github.com/superworldapp/nftsalon-engine/src/utils/task"

	"github.com/redis/go-redis/v9"
)

// Forwards marketplace events to a Redis pub/sub channel
type RedisPublisher struct {
	*task.Task

	redisConfig config.Redis

	monitor *monitor.Monitor

	client      *redis.Client
	channelName string
	input       chan *model.MarketplaceEvent
}

func NewRedisPublisher(config *config.Config, name string) (self *RedisPublisher) {
	self = new(RedisPublisher)

	self.redisConfig = config.Redis
	self.channelName = config.Redis.ChannelName

	self.Task = task.NewTask(config, name).
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect).
		WithWorkerPool(config.Redis.MaxWorkers)

	return
}

func (self *RedisPublisher) WithInputChannel(v chan *model.MarketplaceEvent) *RedisPublisher {
	self.input = v
	return self
}

func (self *RedisPublisher) WithMonitor(monitor *monitor.Monitor) *RedisPublisher {
	self.monitor = monitor
	return self
}

func (self *RedisPublisher) connect() (err error) {
	opts := redis.Options{
		ClientName:      fmt.Sprintf("salon/%s", self.Name),
		Addr:            fmt.Sprintf("%s:%d", self.redisConfig.Host, self.redisConfig.Port),
		Password:        self.redisConfig.Password,
		Username:        self.redisConfig.User,
		DB:              self.redisConfig.DB,
		MinIdleConns:    self.redisConfig.MinIdleConns,
		MaxIdleConns:    self.redisConfig.MaxIdleConns,
		ConnMaxIdleTime: self.redisConfig.ConnMaxIdleTime,
		PoolSize:        self.redisConfig.MaxOpenConns,
		ConnMaxLifetime: self.redisConfig.ConnMaxLifetime,
	}

	self.client = redis.NewClient(&opts)
	return
}

func (self *RedisPublisher) disconnect() {
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

func (self *RedisPublisher) run() (err error) {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case event, ok := <-self.input:
			if !ok {
				return nil
			}
			self.SubmitToWorker(func() {
				self.publish(event)
			})
		}
	}
}

func (self *RedisPublisher) publish(event *model.MarketplaceEvent) {
	err := self.client.Publish(self.Ctx, self.channelName, event).Err()
	if err != nil {
		self.Log.WithError(err).WithField("kind", event.Kind).Error("Failed to publish event")
		if self.monitor != nil {
			self.monitor.Report.Errors.EventPublishErrors.Inc()
		}
	}
}
