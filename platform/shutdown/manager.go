package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager выполняет зарегистрированные функции остановки в обратном порядке.
// Порядок регистрации = порядок запуска компонентов, поэтому останавливаем с конца:
// сначала HTTP (перестаём принимать запросы), потом воркеры, потом пулы соединений.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	steps []step
}

type step struct {
	name string
	fn   func(context.Context) error
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{timeout: timeout, logger: logger}
}

// Add регистрирует шаг остановки
func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// Wait блокируется до SIGINT/SIGTERM либо до отмены ctx, после чего запускает Shutdown
func (m *Manager) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	m.logger.Info("shutdown signal received")

	return m.Shutdown()
}

// Shutdown последовательно выполняет шаги, каждый со своим таймаутом.
// Ошибка одного шага не прерывает остальные, все ошибки собираются через errors.Join.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	steps := make([]step, len(m.steps))
	copy(steps, m.steps)
	m.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		start := time.Now()
		err := s.fn(ctx)
		cancel()

		fields := []zap.Field{zap.String("step", s.name), zap.Duration("duration", time.Since(start))}
		if err != nil {
			m.logger.Error("shutdown step failed", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		m.logger.Info("shutdown step completed", fields...)
	}

	m.logger.Info("graceful shutdown completed")
	return errors.Join(errs...)
}

// HTTPServer возвращает шаг остановки для http.Server
func HTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return srv.Shutdown
}

// GRPCServer пытается выполнить GracefulStop, по таймауту делает Stop
func GRPCServer(srv interface {
	GracefulStop()
	Stop()
}) func(context.Context) error {
	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return errors.New("graceful stop timeout exceeded, forced stop")
		}
	}
}

// Closer оборачивает io.Closer-подобные ресурсы (redis.Client, kafka.Writer, kafka.Reader)
func Closer(c interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return c.Close()
	}
}

// Pool оборачивает ресурсы с Close() без ошибки (pgxpool.Pool)
func Pool(p interface{ Close() }) func(context.Context) error {
	return func(context.Context) error {
		p.Close()
		return nil
	}
}

// Mongo отключает клиент MongoDB
func Mongo(client interface {
	Disconnect(context.Context) error
}) func(context.Context) error {
	return client.Disconnect
}

// Cancel останавливает фоновые воркеры через отмену их контекста и ждёт их завершения
func Cancel(cancel context.CancelFunc, wg *sync.WaitGroup) func(context.Context) error {
	return func(ctx context.Context) error {
		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
