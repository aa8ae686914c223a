// Package smartsave provides the client-facing save controller: a small state
// machine that sequences checking → saving → confirmation-required →
// saved/error so a presentation layer (mobile client, web BFF, CLI) can drive
// a save button without re-implementing the dedup workflow.
//
// A Controller is bound to one user and one candidate item at a time. It
// serializes its own state transitions but does not guard against overlapping
// saves issued for the same controller; callers are expected to disable the
// triggering control while a save is in flight.
package smartsave

import (
	"context"
	"sync"

	"github.com/plateful/plate-backend/internal/dedup"
	"github.com/plateful/plate-backend/internal/domain"
	"github.com/plateful/plate-backend/internal/services"
)

// Status enumerates the controller's lifecycle states.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusChecking       Status = "checking"
	StatusSaving         Status = "saving"
	StatusDuplicateFound Status = "duplicate_found"
	StatusSaved          Status = "saved"
	StatusError          Status = "error"
)

// Saver is the coordinator contract the controller drives. *services.PlateService
// satisfies it.
type Saver interface {
	SaveEnhanced(ctx context.Context, userID string, p services.SaveParams) (*services.SaveResult, error)
	ConfirmSave(ctx context.Context, userID string, p services.SaveParams) (*domain.SavedItem, error)
}

// State is an immutable snapshot of the controller for rendering.
//
// Checking and Saving may both be true at once: the enhanced save path
// performs detection and persistence in a single round trip.
type State struct {
	Status   Status `json:"status"`
	Checking bool   `json:"checking"`
	Saving   bool   `json:"saving"`

	// AlreadySaved reports the last save hit an exact duplicate.
	AlreadySaved bool `json:"already_saved"`

	// NeedsConfirmation signals the presenter to show a "save anyway" dialog
	// instead of treating the save as final.
	NeedsConfirmation bool `json:"needs_confirmation"`

	DuplicateCheck *dedup.CheckResult `json:"duplicate_check,omitempty"`
	SavedItem      *domain.SavedItem  `json:"saved_item,omitempty"`
	Err            string             `json:"error,omitempty"`
}

// Controller sequences save interactions for a single user.
type Controller struct {
	mu     sync.Mutex
	saver  Saver
	userID string
	state  State
}

// NewController binds a controller to a coordinator and user.
func NewController(saver Saver, userID string) *Controller {
	return &Controller{
		saver:  saver,
		userID: userID,
		state:  State{Status: StatusIdle},
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns the controller to idle, clearing all prior result and error
// data. Call it whenever the underlying candidate item changes identity.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{Status: StatusIdle}
}

// Save drives the duplicate-aware path and returns the resulting state:
//
//   - exact duplicate → saved, AlreadySaved set, nothing written
//   - similar items found → duplicate_found with NeedsConfirmation; the item
//     was persisted but the presenter should confirm before finalizing
//   - otherwise → saved
//   - failure → error with a human-readable message
func (c *Controller) Save(ctx context.Context, p services.SaveParams) State {
	c.mu.Lock()
	c.state = State{Status: StatusChecking, Checking: true, Saving: true}
	c.mu.Unlock()

	res, err := c.saver.SaveEnhanced(ctx, c.userID, p)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = State{Status: StatusError, Err: err.Error()}
		return c.state
	}

	switch {
	case res.IsDuplicate:
		c.state = State{
			Status:         StatusSaved,
			AlreadySaved:   true,
			DuplicateCheck: res.Check,
			SavedItem:      res.Item,
		}
	case res.Check != nil && res.Check.ShouldWarn:
		c.state = State{
			Status:            StatusDuplicateFound,
			NeedsConfirmation: true,
			DuplicateCheck:    res.Check,
			SavedItem:         res.Item,
		}
	default:
		c.state = State{
			Status:         StatusSaved,
			DuplicateCheck: res.Check,
			SavedItem:      res.Item,
		}
	}
	return c.state
}

// Confirm forces persistence after the user approved a duplicate warning,
// bypassing detection entirely.
func (c *Controller) Confirm(ctx context.Context, p services.SaveParams) State {
	c.mu.Lock()
	c.state = State{Status: StatusSaving, Saving: true}
	c.mu.Unlock()

	item, err := c.saver.ConfirmSave(ctx, c.userID, p)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = State{Status: StatusError, Err: err.Error()}
		return c.state
	}
	c.state = State{Status: StatusSaved, SavedItem: item}
	return c.state
}
