package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

// Reporter receives every finished run. Failures are logged, never fatal to the run.
type Reporter interface {
	Name() string
	Report(ctx context.Context, report *model.RunReport) error
}

type RunOptions struct {
	FailFast bool     `json:"failFast"`
	Only     []string `json:"only"`
}

// RunBook checks the book's required collections, then runs its queries one after another.
// A failed precondition, of the book or of a query, stops the book; any other failed
// query stops it only with FailFast.
func (svc *LabService) RunBook(ctx context.Context, book *model.QueryBook, opts RunOptions) (*model.RunReport, error) {
	report := &model.RunReport{
		ID:        uuid.NewString(),
		Book:      book.Name,
		Database:  book.Database,
		StartedAt: time.Now(),
		Results:   make([]model.QueryResult, 0, len(book.Queries)),
	}
	if report.Database == "" {
		report.Database = svc.DefaultDB
	}
	logger := Logger().WithContext(ctx).WithField("run", report.ID).WithField("book", book.Name)
	log.LogAttr(ctx, log.Key("run.id").String(report.ID), log.Key("run.book").String(book.Name))

	only := util.MakeCollect(opts.Only...)
	if missing := util.MakeCollect(util.Map(book.Queries, func(q model.Query) string {
		return q.Name
	})...).Missing(opts.Only); len(missing) > 0 {
		return nil, errors.Wrapf(ErrQueryNotFound, "book %s: %v", book.Name, missing)
	}

	selected := func(q *model.Query) bool {
		return only.Size() == 0 || only.Exist(q.Name)
	}

	err := log.WithTracer(ctx, PackageName, "precondition", func(ctx context.Context) error {
		return RequireCollections(ctx, svc.MongodbClient.Database(report.Database), book.Requires)
	})
	if err != nil {
		report.Precondition = err.Error()
		for i := range book.Queries {
			if selected(&book.Queries[i]) {
				report.Skipped++
			}
		}
		report.FinishedAt = time.Now()
		logger.Error(err.Error())
		booksCounter.WithLabelValues(book.Name, model.StatusFail).Inc()
		svc.report(ctx, report)
		return report, err
	}

	var preconditionErr error
	stopped := false
	for i := range book.Queries {
		q := &book.Queries[i]
		if !selected(q) {
			continue
		}
		if stopped {
			report.Skipped++
			continue
		}
		_ = log.WithTracer(ctx, PackageName, "query "+q.Name, func(ctx context.Context) error {
			result, err := svc.RunQuery(ctx, book, q)
			report.Results = append(report.Results, result)
			if err != nil {
				logger.WithField("query", q.Name).Error(err.Error())
				stopped = opts.FailFast
			}
			if missing, ok := IsMissingCollections(err); ok {
				report.Precondition = missing.Error()
				preconditionErr = err
				stopped = true
			}
			return err
		})
	}
	report.FinishedAt = time.Now()
	report.Tally()

	status := model.StatusOK
	if report.Failed > 0 {
		status = model.StatusFail
	}
	booksCounter.WithLabelValues(book.Name, status).Inc()
	svc.report(ctx, report)
	if preconditionErr != nil {
		return report, preconditionErr
	}
	if report.Failed > 0 {
		return report, errors.Wrapf(ErrQueriesFailed, "%d of %d", report.Failed, len(report.Results))
	}
	return report, nil
}

// report runs even when ctx is already cancelled so a timed-out run is still recorded.
func (svc *LabService) report(ctx context.Context, report *model.RunReport) {
	ctx = log.WithNoCancel(ctx)
	for _, r := range svc.Reporters {
		if err := r.Report(ctx, report); err != nil {
			reporterErrors.WithLabelValues(r.Name()).Inc()
			Logger().WithContext(ctx).WithField("reporter", r.Name()).Error(err.Error())
		}
	}
}
