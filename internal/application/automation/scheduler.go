// Package automation sincronización periódica POS -> SRI.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jhoicas/loyverse-sri/internal/application/billing"
	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

// Importer importa y procesa los recibos de una ventana de tiempo.
type Importer interface {
	Import(ctx context.Context, since, until time.Time) (*billing.IngestSummary, error)
}

// Status estado observable del programador.
type Status struct {
	Active      bool // el ciclo periódico está iniciado
	Running     bool // hay una pasada en curso
	Interval    time.Duration
	LastRun     *time.Time
	NextRun     *time.Time
	LastSummary *billing.IngestSummary
	LastError   string
	Skipped     int // disparos omitidos por solapamiento
	Watermark   *time.Time
}

// Scheduler dispara la importación cada Interval. Nunca hay dos pasadas a la vez:
// un disparo periódico que se solapa se omite y un RunNow devuelve
// domain.ErrAlreadyRunning.
type Scheduler struct {
	importer Importer
	configs  repository.ConfigRepository
	clock    clockwork.Clock
	interval time.Duration
	lookback time.Duration
	log      *logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun *time.Time
	nextRun *time.Time
	lastSum *billing.IngestSummary
	lastErr string
	skipped int
}

// NewScheduler construye el programador. lookback es la ventana inicial cuando el
// emisor aún no tiene marca de última sincronización.
func NewScheduler(
	importer Importer,
	configs repository.ConfigRepository,
	clock clockwork.Clock,
	interval, lookback time.Duration,
	log *logger.Logger,
) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		importer: importer,
		configs:  configs,
		clock:    clock,
		interval: interval,
		lookback: lookback,
		log:      log.Component("scheduler"),
	}
}

// Start inicia el ciclo periódico. Si el emisor define un intervalo propio, ese
// tiene prioridad sobre el de la configuración del servicio.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return fmt.Errorf("%w: la automatización ya está iniciada", domain.ErrConflict)
	}

	if cfg, err := s.configs.GetActive(ctx); err == nil && cfg.SyncIntervalMinutes > 0 {
		s.interval = time.Duration(cfg.SyncIntervalMinutes) * time.Minute
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.active = true
	s.cancel = cancel
	s.done = make(chan struct{})
	next := s.clock.Now().Add(s.interval)
	s.nextRun = &next

	go s.loop(loopCtx, s.interval, s.done)

	s.log.Info().Dur("interval", s.interval).Msg("automatización iniciada")
	return nil
}

// Stop detiene el ciclo y espera a que termine la pasada en curso.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.nextRun = nil
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.wg.Wait()
	s.log.Info().Msg("automatización detenida")
}

// RunNow ejecuta una pasada inmediata y devuelve su resumen.
func (s *Scheduler) RunNow(ctx context.Context) (*billing.IngestSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrAlreadyRunning
	}
	defer s.running.Store(false)
	return s.pass(ctx)
}

// Status devuelve una copia del estado actual.
func (s *Scheduler) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{
		Active:      s.active,
		Running:     s.running.Load(),
		Interval:    s.interval,
		LastRun:     s.lastRun,
		NextRun:     s.nextRun,
		LastSummary: s.lastSum,
		LastError:   s.lastErr,
		Skipped:     s.skipped,
	}
	s.mu.Unlock()

	if cfg, err := s.configs.GetActive(ctx); err == nil {
		st.Watermark = cfg.LastSyncAt
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.mu.Lock()
			next := s.clock.Now().Add(interval)
			s.nextRun = &next
			s.mu.Unlock()

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.tick(ctx)
			}()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.log.Warn().Msg("pasada anterior aún en curso, se omite el disparo")
		return
	}
	defer s.running.Store(false)
	if _, err := s.pass(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Msg("pasada fallida")
	}
}

// pass importa desde la marca de agua hasta ahora y, si termina, avanza la marca.
func (s *Scheduler) pass(ctx context.Context) (*billing.IngestSummary, error) {
	started := s.clock.Now()
	sum, err := s.run(ctx, started)

	s.mu.Lock()
	s.lastRun = &started
	if sum != nil {
		s.lastSum = sum
	}
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	return sum, err
}

func (s *Scheduler) run(ctx context.Context, until time.Time) (*billing.IngestSummary, error) {
	cfg, err := s.configs.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	since := until.Add(-s.lookback)
	if cfg.LastSyncAt != nil {
		since = *cfg.LastSyncAt
	}

	s.log.Info().Time("since", since).Time("until", until).Msg("pasada iniciada")
	sum, err := s.importer.Import(ctx, since, until)
	if err != nil {
		return sum, err
	}
	if err := s.configs.UpdateLastSync(ctx, cfg.ID, until); err != nil {
		return sum, fmt.Errorf("actualizar marca de sincronización: %w", err)
	}
	return sum, nil
}
