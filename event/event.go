package event

import (
	"context"
	"sync"
	"time"

	"github.com/SplitFi/go-drops/service/logger"
	"github.com/SplitFi/go-drops/service/persist"
	sentryutil "github.com/SplitFi/go-drops/service/sentry"
	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
)

const defaultWorkerPoolSize = 3

// Action identifies what an event records
type Action string

const (
	// ActionRoleChanged records a role grant or revoke
	ActionRoleChanged Action = "role.changed"
	// ActionDropCreated records a new drop
	ActionDropCreated Action = "drop.created"
	// ActionDropUpdated records a field mutation on a drop
	ActionDropUpdated Action = "drop.updated"
	// ActionUnitMinted records one issued unit
	ActionUnitMinted Action = "unit.minted"
)

// Event is one accounting record emitted by the registries and the mint engine
type Event struct {
	ID     persist.DBID `json:"id"`
	Time   time.Time    `json:"time"`
	Action Action       `json:"action"`

	RoleChanged *RoleChanged `json:"role_changed,omitempty"`
	DropCreated *DropCreated `json:"drop_created,omitempty"`
	DropUpdated *DropUpdated `json:"drop_updated,omitempty"`
	UnitMinted  *UnitMinted  `json:"unit_minted,omitempty"`
}

// RoleChanged carries (role, subject, actor) for a grant or revoke
type RoleChanged struct {
	Role    persist.Role            `json:"role"`
	Subject persist.EthereumAddress `json:"subject"`
	Actor   persist.EthereumAddress `json:"actor"`
	Granted bool                    `json:"granted"`
}

// DropCreated carries the identity of a newly created drop
type DropCreated struct {
	DropID     persist.DropID          `json:"drop_id"`
	ExternalID string                  `json:"external_id"`
	Owner      persist.EthereumAddress `json:"owner"`
	Supply     uint64                  `json:"supply"`
}

// DropUpdated carries the field a SubAdmin overwrote
type DropUpdated struct {
	DropID persist.DropID          `json:"drop_id"`
	Field  string                  `json:"field"`
	Actor  persist.EthereumAddress `json:"actor"`
}

// UnitMinted carries one issued unit with its serial number within the drop
type UnitMinted struct {
	DropID     persist.DropID          `json:"drop_id"`
	UnitID     persist.UnitID          `json:"unit_id"`
	ExternalID persist.NullString      `json:"external_id,omitempty"`
	Serial     uint64                  `json:"serial"`
	Recipient  persist.EthereumAddress `json:"recipient"`
}

// Handler handles a dispatched event
type Handler interface {
	Handle(context.Context, Event)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(context.Context, Event)

func (f HandlerFunc) Handle(ctx context.Context, evt Event) {
	f(ctx, evt)
}

// Dispatcher fans events out to registered handlers on a worker pool.
// Handlers are fire-and-forget: a slow or failing handler never blocks or
// aborts the operation that emitted the event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Action][]Handler
	wp       *workerpool.WorkerPool
}

// NewDispatcher creates a Dispatcher with a logging handler for every action
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		handlers: map[Action][]Handler{},
		wp:       workerpool.New(defaultWorkerPoolSize),
	}
	logHandler := HandlerFunc(logEvent)
	for _, action := range []Action{ActionRoleChanged, ActionDropCreated, ActionDropUpdated, ActionUnitMinted} {
		d.AddHandler(action, logHandler)
	}
	return d
}

// AddHandler registers a handler for an action
func (d *Dispatcher) AddHandler(action Action, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = append(d.handlers[action], handler)
}

// Dispatch submits an event to every handler registered for its action
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) {
	if evt.ID == "" {
		evt.ID = persist.GenerateID()
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Action]
	d.mu.RUnlock()

	for _, handler := range handlers {
		handler := handler
		d.wp.Submit(func() {
			defer sentryutil.RecoverAndRaise(ctx)
			handler.Handle(ctx, evt)
		})
	}
}

// StopWait drains the worker pool; used on shutdown and in tests
func (d *Dispatcher) StopWait() {
	d.wp.StopWait()
}

func logEvent(ctx context.Context, evt Event) {
	logger.For(ctx).WithFields(logrus.Fields{
		"event_id": evt.ID,
		"action":   evt.Action,
	}).Infof("event dispatched: %s", evt.Action)
}
