package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
)

// CronParser accepts five or six fields and descriptors such as @hourly.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduledBook runs Path on Spec.
type ScheduledBook struct {
	Spec string
	Path string
}

// Scheduler runs books on cron schedules. A tick is dropped while the previous run
// of the same book is still going.
type Scheduler struct {
	svc     *LabService
	cron    *cron.Cron
	load    func(path string) (*model.QueryBook, error)
	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

func NewScheduler(svc *LabService) *Scheduler {
	logger := cron.PrintfLogger(Logger().WithField("component", "cron"))
	return &Scheduler{
		svc:     svc,
		cron:    cron.New(cron.WithParser(CronParser), cron.WithChain(cron.Recover(logger)), cron.WithLogger(logger)),
		load:    model.LoadBook,
		running: map[string]bool{},
	}
}

// Add registers every entry; the book file is reloaded on each tick.
func (s *Scheduler) Add(books ...ScheduledBook) error {
	for _, b := range books {
		path := b.Path
		_, err := s.cron.AddFunc(b.Spec, func() {
			s.wg.Add(1)
			log.SafeGo(func() {
				defer s.wg.Done()
				s.Tick(context.Background(), path)
			}, log.WithName("schedule "+path))
		})
		if err != nil {
			return errors.Wrapf(err, "schedule %q for %s", b.Spec, path)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running books to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) acquire(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[path] {
		return false
	}
	s.running[path] = true
	return true
}

func (s *Scheduler) release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, path)
}

// Tick runs the book at path once. It returns false when a previous run is still going.
func (s *Scheduler) Tick(ctx context.Context, path string) bool {
	if !s.acquire(path) {
		Logger().WithContext(ctx).WithField("book", path).Warn("previous run still going, skipped")
		return false
	}
	defer s.release(path)
	_ = log.WithTracer(ctx, PackageName, "scheduled "+path, func(ctx context.Context) error {
		book, err := s.load(path)
		if err != nil {
			Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		_, err = s.svc.RunBook(ctx, book, RunOptions{})
		return err
	})
	return true
}
