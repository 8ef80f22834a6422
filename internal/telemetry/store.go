package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

const storeScopeName = "github.com/twiced-technology-gmbh/trackflow/store"

type instruments struct {
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// InstrumentedStore wraps store.Store with spans and trackflow.store.*
// metrics. Transactions hand fn an instrumented Tx as well.
type InstrumentedStore struct {
	rw
	inner store.Store
}

var _ store.Store = (*InstrumentedStore)(nil)

// WrapStore returns s decorated with instrumentation, or s unchanged when
// telemetry is disabled.
func WrapStore(s store.Store) store.Store {
	if !Enabled() {
		return s
	}
	return Instrument(s, otel.GetTracerProvider(), otel.GetMeterProvider())
}

// Instrument decorates s using the given providers.
func Instrument(s store.Store, tp trace.TracerProvider, mp metric.MeterProvider) *InstrumentedStore {
	m := mp.Meter(storeScopeName)
	ops, _ := m.Int64Counter("trackflow.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("trackflow.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("trackflow.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	ins := &instruments{tracer: tp.Tracer(storeScopeName), ops: ops, dur: dur, errs: errs}
	return &InstrumentedStore{rw: rw{ins: ins, r: s, w: s}, inner: s}
}

// op starts a span and counts the named operation.
func (ins *instruments) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := ins.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	ins.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span and records duration and any error. NOT_FOUND is an
// expected answer, not a failure.
func (ins *instruments) done(ctx context.Context, span trace.Span, start time.Time, name string, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", name))
	ins.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil && !apierr.Is(err, apierr.NotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ins.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

func observe[T any](ins *instruments, ctx context.Context, name string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span, t := ins.op(ctx, name, attrs...)
	v, err := fn(ctx)
	ins.done(ctx, span, t, name, err)
	return v, err
}

func observeErr(ins *instruments, ctx context.Context, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span, t := ins.op(ctx, name, attrs...)
	err := fn(ctx)
	ins.done(ctx, span, t, name, err)
	return err
}

// RunInTransaction implements store.Store.
func (s *InstrumentedStore) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	return observeErr(s.ins, ctx, "RunInTransaction", func(ctx context.Context) error {
		return s.inner.RunInTransaction(ctx, func(tx store.Tx) error {
			return fn(&rw{ins: s.ins, r: tx, w: tx})
		})
	})
}

// Close implements store.Store.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// rw instruments the Reader and Writer halves of a store or transaction.
type rw struct {
	ins *instruments
	r   store.Reader
	w   store.Writer
}

func issueAttr(id string) attribute.KeyValue   { return attribute.String("trackflow.issue.id", id) }
func sprintAttr(id string) attribute.KeyValue  { return attribute.String("trackflow.sprint.id", id) }
func epicAttr(id string) attribute.KeyValue    { return attribute.String("trackflow.epic.id", id) }
func projectAttr(id string) attribute.KeyValue { return attribute.String("trackflow.project.id", id) }

func (x *rw) GetIssue(ctx context.Context, id string) (*issue.Issue, error) {
	return observe(x.ins, ctx, "GetIssue", func(ctx context.Context) (*issue.Issue, error) {
		return x.r.GetIssue(ctx, id)
	}, issueAttr(id))
}

func (x *rw) GetIssueByKey(ctx context.Context, key string) (*issue.Issue, error) {
	return observe(x.ins, ctx, "GetIssueByKey", func(ctx context.Context) (*issue.Issue, error) {
		return x.r.GetIssueByKey(ctx, key)
	}, attribute.String("trackflow.issue.key", key))
}

func (x *rw) ListIssuesByProject(ctx context.Context, projectID string) ([]*issue.Issue, error) {
	return observe(x.ins, ctx, "ListIssuesByProject", func(ctx context.Context) ([]*issue.Issue, error) {
		return x.r.ListIssuesByProject(ctx, projectID)
	}, projectAttr(projectID))
}

func (x *rw) ListIssuesBySprint(ctx context.Context, sprintID string) ([]*issue.Issue, error) {
	return observe(x.ins, ctx, "ListIssuesBySprint", func(ctx context.Context) ([]*issue.Issue, error) {
		return x.r.ListIssuesBySprint(ctx, sprintID)
	}, sprintAttr(sprintID))
}

func (x *rw) ListIssuesByEpic(ctx context.Context, epicID string) ([]*issue.Issue, error) {
	return observe(x.ins, ctx, "ListIssuesByEpic", func(ctx context.Context) ([]*issue.Issue, error) {
		return x.r.ListIssuesByEpic(ctx, epicID)
	}, epicAttr(epicID))
}

func (x *rw) GetSprint(ctx context.Context, id string) (*sprint.Sprint, error) {
	return observe(x.ins, ctx, "GetSprint", func(ctx context.Context) (*sprint.Sprint, error) {
		return x.r.GetSprint(ctx, id)
	}, sprintAttr(id))
}

func (x *rw) ListSprintsByProject(ctx context.Context, projectID string) ([]*sprint.Sprint, error) {
	return observe(x.ins, ctx, "ListSprintsByProject", func(ctx context.Context) ([]*sprint.Sprint, error) {
		return x.r.ListSprintsByProject(ctx, projectID)
	}, projectAttr(projectID))
}

func (x *rw) GetEpic(ctx context.Context, id string) (*epic.Epic, error) {
	return observe(x.ins, ctx, "GetEpic", func(ctx context.Context) (*epic.Epic, error) {
		return x.r.GetEpic(ctx, id)
	}, epicAttr(id))
}

func (x *rw) ListEpicsByProject(ctx context.Context, projectID string) ([]*epic.Epic, error) {
	return observe(x.ins, ctx, "ListEpicsByProject", func(ctx context.Context) ([]*epic.Epic, error) {
		return x.r.ListEpicsByProject(ctx, projectID)
	}, projectAttr(projectID))
}

func (x *rw) GetProject(ctx context.Context, id string) (*project.Project, error) {
	return observe(x.ins, ctx, "GetProject", func(ctx context.Context) (*project.Project, error) {
		return x.r.GetProject(ctx, id)
	}, projectAttr(id))
}

func (x *rw) ListProjects(ctx context.Context) ([]*project.Project, error) {
	return observe(x.ins, ctx, "ListProjects", x.r.ListProjects)
}

func (x *rw) SaveIssue(ctx context.Context, it *issue.Issue) error {
	return observeErr(x.ins, ctx, "SaveIssue", func(ctx context.Context) error {
		return x.w.SaveIssue(ctx, it)
	}, issueAttr(it.ID), attribute.String("trackflow.issue.status", string(it.Status)))
}

func (x *rw) DeleteIssue(ctx context.Context, id string) error {
	return observeErr(x.ins, ctx, "DeleteIssue", func(ctx context.Context) error {
		return x.w.DeleteIssue(ctx, id)
	}, issueAttr(id))
}

func (x *rw) SaveSprint(ctx context.Context, sp *sprint.Sprint) error {
	return observeErr(x.ins, ctx, "SaveSprint", func(ctx context.Context) error {
		return x.w.SaveSprint(ctx, sp)
	}, sprintAttr(sp.ID))
}

func (x *rw) SaveEpic(ctx context.Context, e *epic.Epic) error {
	return observeErr(x.ins, ctx, "SaveEpic", func(ctx context.Context) error {
		return x.w.SaveEpic(ctx, e)
	}, epicAttr(e.ID))
}

func (x *rw) SaveProject(ctx context.Context, p *project.Project) error {
	return observeErr(x.ins, ctx, "SaveProject", func(ctx context.Context) error {
		return x.w.SaveProject(ctx, p)
	}, projectAttr(p.ID))
}
