package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// Delivery is one closed session handed to the report sinks
type Delivery struct {
	Session *models.Session
	Report  *models.IntelligenceReport
}

// ReportSink receives every intelligence report
type ReportSink interface {
	Name() string
	Deliver(ctx context.Context, d *Delivery) error
}

// ReportMarker records that a session's report was handed off, so that
// replicas sharing a store do not report the same session twice
type ReportMarker interface {
	MarkReported(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
}

const markTimeout = 2 * time.Second

// ReporterConfig contains configuration for the reporter
type ReporterConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each sink delivery
	Timeout time.Duration

	// Marker, when set, is consulted by the workers before any sink runs
	Marker  ReportMarker
	MarkTTL time.Duration
}

// DefaultReporterConfig returns sensible defaults
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		Workers:   2,
		QueueSize: 256,
		Timeout:   10 * time.Second,
	}
}

// ReporterStats counts report outcomes since start
type ReporterStats struct {
	Queued    int64 `json:"queued"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`

	// Duplicates were skipped because another replica already reported the session
	Duplicates int64 `json:"duplicates"`
}

// Reporter delivers intelligence reports in the background so that the reply
// path never waits on a sink
type Reporter struct {
	sinks  []ReportSink
	queue  chan *Delivery
	cfg    ReporterConfig
	logger *logger.Logger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	// mu orders Submit against Stop: no send can land after the workers drained
	mu      sync.RWMutex
	stopped bool

	queued     atomic.Int64
	delivered  atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
	duplicates atomic.Int64
}

// NewReporter creates a reporter and starts its workers
func NewReporter(cfg ReporterConfig, log *logger.Logger, sinks ...ReportSink) *Reporter {
	def := DefaultReporterConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MarkTTL <= 0 {
		cfg.MarkTTL = 24 * time.Hour
	}

	r := &Reporter{
		sinks:  sinks,
		queue:  make(chan *Delivery, cfg.QueueSize),
		cfg:    cfg,
		logger: log.WithComponent("reporter"),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	r.logger.Info().Int("workers", cfg.Workers).Strs("sinks", names).Msg("report workers started")

	return r
}

// Submit queues a delivery without blocking and reports whether it was accepted
func (r *Reporter) Submit(d *Delivery) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.queue <- d:
		r.queued.Add(1)
		r.logger.Debug().Str("session_id", d.Report.SessionID).Msg("report queued")
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warn().Str("session_id", d.Report.SessionID).Msg("report queue full, dropping report")
		return false
	}
}

// Stop drains queued deliveries and waits for the workers to exit
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()

		close(r.stopCh)
		r.wg.Wait()
		r.logger.Info().Msg("reporter stopped")
	})
}

// Stats returns a snapshot of the counters
func (r *Reporter) Stats() ReporterStats {
	return ReporterStats{
		Queued:     r.queued.Load(),
		Delivered:  r.delivered.Load(),
		Failed:     r.failed.Load(),
		Dropped:    r.dropped.Load(),
		Duplicates: r.duplicates.Load(),
	}
}

func (r *Reporter) worker(id int) {
	defer r.wg.Done()

	for {
		select {
		case d := <-r.queue:
			r.deliver(d)
		case <-r.stopCh:
			for {
				select {
				case d := <-r.queue:
					r.deliver(d)
				default:
					r.logger.Debug().Int("worker", id).Msg("report worker stopping")
					return
				}
			}
		}
	}
}

func (r *Reporter) deliver(d *Delivery) {
	if !r.firstReport(d) {
		r.duplicates.Add(1)
		r.logger.Debug().Str("session_id", d.Report.SessionID).Msg("report already sent by another replica")
		return
	}

	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
		start := time.Now()
		err := sink.Deliver(ctx, d)
		cancel()

		if err != nil {
			r.failed.Add(1)
			r.logger.Warn().
				Err(err).
				Str("sink", sink.Name()).
				Str("session_id", d.Report.SessionID).
				Msg("report delivery failed")
			continue
		}

		r.delivered.Add(1)
		r.logger.Info().
			Str("sink", sink.Name()).
			Str("session_id", d.Report.SessionID).
			Dur("duration", time.Since(start)).
			Msg("report delivered")
	}
}

// firstReport asks the marker whether this replica owns the report. Marker
// failures deliver anyway: a duplicate beats a lost report.
func (r *Reporter) firstReport(d *Delivery) bool {
	if r.cfg.Marker == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), markTimeout)
	defer cancel()

	first, err := r.cfg.Marker.MarkReported(ctx, d.Report.SessionID, r.cfg.MarkTTL)
	if err != nil {
		r.logger.Warn().Err(err).Str("session_id", d.Report.SessionID).Msg("failed to mark report, sending anyway")
		return true
	}
	return first
}
