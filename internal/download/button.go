// Package download implements the download buttons shown next to a query.
//
// A button is bound to the lifetime of whatever renders it. Unmount cancels
// in-flight work, and a result that arrives afterwards is dropped instead of
// being saved.
package download

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"pdqctl/internal/filestore"
	"pdqctl/internal/pdq"

	"github.com/rs/zerolog"
)

var (
	// ErrDisabled is returned by Click on a disabled button. No request is made.
	ErrDisabled = errors.New("download button is disabled")
	// ErrUnmounted is returned when the button's owner went away.
	ErrUnmounted = errors.New("download button is unmounted")
)

// Props is what the owner passes when rendering a button.
type Props struct {
	// ID distinguishes buttons for the same schema.
	ID       int
	SchemaID int
	QueryID  int
	SQL      string
	// Plan identifies the most recently computed plan, nil if none.
	Plan *pdq.PlanRef
}

// PlanDownloader fetches plan bytes. *pdq.Client implements it.
type PlanDownloader interface {
	DownloadPlan(ctx context.Context, schemaID, queryID int, sql string) ([]byte, error)
}

// RunDownloader fetches run results as CSV. *pdq.Client implements it.
type RunDownloader interface {
	DownloadRun(ctx context.Context, schemaID, queryID int, sql string) ([]byte, error)
}

// Saved describes a completed download.
type Saved struct {
	Name  string
	Bytes int
}

type fetchFunc func(ctx context.Context, schemaID, queryID int, sql string) ([]byte, error)

func noFetch(context.Context, int, int, string) ([]byte, error) {
	return nil, errors.New("no downloader configured")
}

// core holds what the plan and run buttons share.
type core struct {
	kind     string
	idPrefix string
	tooltip  string
	fetch    fetchFunc
	fileName func(Props) string
	saver    filestore.Saver
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	props       Props
	tooltipOpen bool
}

func newCore(ctx context.Context, props Props, saver filestore.Saver, log zerolog.Logger) *core {
	if ctx == nil {
		ctx = context.Background()
	}
	if saver == nil {
		saver = filestore.NewDirSaver(".")
	}
	cctx, cancel := context.WithCancel(ctx)
	return &core{
		fetch:  noFetch,
		saver:  saver,
		log:    log,
		ctx:    cctx,
		cancel: cancel,
		props:  props,
	}
}

// Props returns the current props.
func (c *core) Props() Props {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props
}

// SetProps replaces the props, as a re-render would.
func (c *core) SetProps(p Props) {
	c.mu.Lock()
	c.props = p
	c.mu.Unlock()
}

// SetPlan updates only the computed plan reference.
func (c *core) SetPlan(ref *pdq.PlanRef) {
	c.mu.Lock()
	c.props.Plan = ref
	c.mu.Unlock()
}

// Disabled reports whether there is no computed plan for this button's
// schema and query.
func (c *core) Disabled() bool {
	p := c.Props()
	return !p.Plan.Matches(p.SchemaID, p.QueryID)
}

func (c *core) ToggleTooltip() {
	c.mu.Lock()
	c.tooltipOpen = !c.tooltipOpen
	c.mu.Unlock()
}

func (c *core) TooltipOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tooltipOpen
}

func (c *core) TooltipText() string {
	return c.tooltip
}

// ElementID is the identifier the tooltip is anchored to.
func (c *core) ElementID() string {
	p := c.Props()
	return c.idPrefix + strconv.Itoa(p.SchemaID) + strconv.Itoa(p.ID)
}

// FileName is the name the next click will save under.
func (c *core) FileName() string {
	return c.fileName(c.Props())
}

// Unmount cancels in-flight work. Later clicks return ErrUnmounted.
func (c *core) Unmount() {
	c.cancel()
}

// Mounted reports whether Unmount has not been called yet.
func (c *core) Mounted() bool {
	return c.ctx.Err() == nil
}

// Click downloads the file and hands it to the saver.
func (c *core) Click() (Saved, error) {
	if c.ctx.Err() != nil {
		return Saved{}, ErrUnmounted
	}
	p := c.Props()
	if !p.Plan.Matches(p.SchemaID, p.QueryID) {
		return Saved{}, ErrDisabled
	}

	name := c.fileName(p)
	log := c.log.With().
		Str("download", c.kind).
		Int("schema_id", p.SchemaID).
		Int("query_id", p.QueryID).
		Str("file", name).
		Logger()

	body, err := c.fetch(c.ctx, p.SchemaID, p.QueryID, SimplifySQL(p.SQL))
	if c.ctx.Err() != nil {
		log.Debug().Msg("unmounted during download, result dropped")
		return Saved{}, ErrUnmounted
	}
	if err != nil {
		log.Error().Err(err).Msg("download failed")
		return Saved{}, fmt.Errorf("download %s: %w", c.kind, err)
	}

	if err := c.saver.SaveFile(c.ctx, name, body); err != nil {
		log.Error().Err(err).Msg("save failed")
		return Saved{}, fmt.Errorf("save %s: %w", name, err)
	}

	log.Debug().Int("bytes", len(body)).Msg("download saved")
	return Saved{Name: name, Bytes: len(body)}, nil
}

// Button downloads the computed plan of a query as XML.
type Button struct {
	*core
}

// NewButton binds a plan download button to ctx. Cancelling ctx has the
// same effect as Unmount.
func NewButton(ctx context.Context, props Props, api PlanDownloader, saver filestore.Saver, log zerolog.Logger) *Button {
	c := newCore(ctx, props, saver, log)
	c.kind = "plan"
	c.idPrefix = "downloadPlan"
	c.tooltip = "Download plan as .xml"
	if api != nil {
		c.fetch = api.DownloadPlan
	}
	c.fileName = func(p Props) string { return PlanFileName(p.SchemaID, p.QueryID) }
	return &Button{core: c}
}

// RunButton downloads the results of running the computed plan as CSV.
// It shares the plan button's enable rule.
type RunButton struct {
	*core
}

func NewRunButton(ctx context.Context, props Props, api RunDownloader, saver filestore.Saver, log zerolog.Logger) *RunButton {
	c := newCore(ctx, props, saver, log)
	c.kind = "run"
	c.idPrefix = "downloadRun"
	c.tooltip = "Download results as .csv"
	if api != nil {
		c.fetch = api.DownloadRun
	}
	c.fileName = func(Props) string { return RunFileName }
	return &RunButton{core: c}
}
