package monitor

import (
	"math"
	"net/http"
	"time"

	"github.com/superworldapp/nftsalon-engine/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report Report

	historySize int

	// Settlement speed
	SalesSettled *deque.Deque[uint64]
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.historySize = 30

	self.Task = task.NewTask(nil, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorSales)
	return
}

func (self *Monitor) WithMaxHistorySize(maxHistorySize int) *Monitor {
	self.historySize = maxHistorySize

	self.SalesSettled = deque.New[uint64](self.historySize)

	self.Report.StartTimestamp.Store(time.Now().Unix())
	return self
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure settlement speed
func (self *Monitor) monitorSales() (err error) {
	loaded := self.Report.SalesSettled.Load()

	self.SalesSettled.PushBack(loaded)
	if self.SalesSettled.Len() > self.historySize {
		self.SalesSettled.PopFront()
	}
	value := float64(self.SalesSettled.Back()-self.SalesSettled.Front()) / float64(self.SalesSettled.Len())

	self.Report.AverageSalesSettledPerMinute.Store(round(value))
	return
}

// An operational engine accepts requests, there's no throughput it has to sustain
func (self *Monitor) IsOK() bool {
	return true
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.Report.Fill()
	c.JSON(http.StatusOK, &self.Report)
}
