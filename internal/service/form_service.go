package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/domain"
	"github.com/spec-kit/ticket-board/internal/repository"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

// FormMode tells which ticket modal is open.
type FormMode string

const (
	FormClosed FormMode = "closed"
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// TicketForm is the editable state of the open modal.
type TicketForm struct {
	TicketID    string
	Title       string
	Description string
	Priority    int
	AssigneeID  string
}

func newTicketForm() TicketForm {
	return TicketForm{Priority: domain.DefaultPriority}
}

// FormController drives the create and edit ticket modals.
type FormController struct {
	api    CardsAPI
	store  *repository.TicketStore
	roster *repository.TeamRoster
	gate   SessionGate
	logger *zap.Logger

	mu         sync.Mutex
	mode       FormMode
	form       TicketForm
	confirming bool
	generation uint64
}

// NewFormController constructs a controller with every modal closed.
func NewFormController(api CardsAPI, store *repository.TicketStore, roster *repository.TeamRoster, gate SessionGate, logger *zap.Logger) *FormController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if roster == nil {
		roster = repository.NewTeamRoster()
	}
	return &FormController{
		api:    api,
		store:  store,
		roster: roster,
		gate:   gate,
		logger: logger.Named("form"),
		mode:   FormClosed,
		form:   newTicketForm(),
	}
}

// OpenCreate opens the create modal with default values.
func (f *FormController) OpenCreate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != FormClosed {
		return modalBusy(f.mode)
	}
	f.open(FormCreate, newTicketForm())
	return nil
}

// OpenEdit opens the edit modal pre-filled from ticket id.
func (f *FormController) OpenEdit(id string) error {
	ticket, ok := f.store.Get(id)
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != FormClosed {
		return modalBusy(f.mode)
	}
	f.open(FormEdit, TicketForm{
		TicketID:    ticket.ID,
		Title:       ticket.Title,
		Description: domain.Deref(ticket.Description),
		Priority:    ticket.Priority,
		AssigneeID:  domain.Deref(ticket.AssigneeID),
	})
	return nil
}

// Close dismisses the open modal and discards its contents.
func (f *FormController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

// Mode returns the open modal.
func (f *FormController) Mode() FormMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Form returns a copy of the modal contents.
func (f *FormController) Form() TicketForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// ConfirmingDelete reports whether the delete confirmation is showing.
func (f *FormController) ConfirmingDelete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirming
}

func (f *FormController) SetTitle(title string) {
	f.edit(func(form *TicketForm) { form.Title = title })
}

func (f *FormController) SetDescription(description string) {
	f.edit(func(form *TicketForm) { form.Description = description })
}

func (f *FormController) SetAssignee(id string) {
	f.edit(func(form *TicketForm) { form.AssigneeID = id })
}

// SetPriority parses raw as an integer priority.
func (f *FormController) SetPriority(raw string) error {
	priority, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return apperrors.NewValidationError("priority must be a number", map[string]any{"priority": raw})
	}
	f.edit(func(form *TicketForm) { form.Priority = priority })
	return nil
}

// Submit sends the open form. Validation failures and request errors keep
// the modal open with its contents intact.
func (f *FormController) Submit(ctx context.Context) error {
	f.mu.Lock()
	mode, form, gen := f.mode, f.form, f.generation
	f.mu.Unlock()

	if mode == FormClosed {
		return apperrors.NewValidationError("no ticket form is open", nil)
	}
	if err := validateForm(form); err != nil {
		return err
	}
	if !f.gate.Valid() {
		return apperrors.NewSessionInvalid("submit")
	}

	var err error
	switch mode {
	case FormCreate:
		err = f.create(ctx, form)
	case FormEdit:
		err = f.update(ctx, form)
	}
	if err != nil {
		return err
	}
	f.closeIf(gen)
	return nil
}

func (f *FormController) create(ctx context.Context, form TicketForm) error {
	ticket, err := f.api.CreateCard(ctx, domain.TicketDraft{
		Title:       form.Title,
		Description: domain.StringPtr(form.Description),
		Priority:    form.Priority,
		Status:      domain.TicketStatusTodo,
		AuthorID:    f.gate.Identity().ID,
		AssigneeID:  domain.StringPtr(form.AssigneeID),
	})
	if err != nil {
		f.logger.Error("create ticket", zap.Error(err), zap.String("detail", apperrors.Detail(err)))
		return err
	}
	if ticket != nil {
		if ticket.Assignee == nil && ticket.AssigneeID != nil {
			if name, ok := f.roster.Name(*ticket.AssigneeID); ok {
				ticket.Assignee = &name
			}
		}
		// The ticketCreated broadcast for the same id is then a no-op.
		f.store.Insert(*ticket)
	}
	return nil
}

func (f *FormController) update(ctx context.Context, form TicketForm) error {
	changes := domain.TicketChanges{
		Title:       form.Title,
		Description: domain.StringPtr(form.Description),
		Priority:    form.Priority,
		AssigneeID:  domain.StringPtr(form.AssigneeID),
	}
	confirmed, err := f.api.UpdateCard(ctx, form.TicketID, changes)
	if err != nil {
		f.logger.Error("update ticket",
			zap.String("ticket_id", form.TicketID),
			zap.Error(err),
			zap.String("detail", apperrors.Detail(err)))
		return err
	}

	patch := changes.Patch(form.TicketID)
	patch.Assignee = domain.Some(f.assigneeName(changes.AssigneeID))
	if confirmed != nil {
		patch = patch.Overlay(*confirmed)
		patch.ID = form.TicketID
	}
	f.store.Merge(patch)
	return nil
}

func (f *FormController) assigneeName(id *string) *string {
	if id == nil {
		return nil
	}
	if name, ok := f.roster.Name(*id); ok {
		return &name
	}
	return nil
}

// RequestDelete shows the delete confirmation for the ticket being edited.
func (f *FormController) RequestDelete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != FormEdit {
		return apperrors.NewValidationError("only an edited ticket can be deleted", nil)
	}
	f.confirming = true
	return nil
}

// CancelDelete hides the confirmation and returns to editing.
func (f *FormController) CancelDelete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirming = false
}

// ConfirmDelete deletes the edited ticket after RequestDelete.
func (f *FormController) ConfirmDelete(ctx context.Context) error {
	f.mu.Lock()
	mode, confirming, id, gen := f.mode, f.confirming, f.form.TicketID, f.generation
	f.mu.Unlock()

	if mode != FormEdit || !confirming {
		return apperrors.NewValidationError("delete was not requested", nil)
	}
	if !f.gate.Valid() {
		return apperrors.NewSessionInvalid("delete")
	}
	if err := f.api.DeleteCard(ctx, id); err != nil {
		f.logger.Error("delete ticket",
			zap.String("ticket_id", id),
			zap.Error(err),
			zap.String("detail", apperrors.Detail(err)))
		return err
	}
	f.store.Remove(id)
	f.closeIf(gen)
	return nil
}

func validateForm(form TicketForm) error {
	if strings.TrimSpace(form.Title) == "" {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if form.Priority < 1 {
		return apperrors.NewValidationError("priority must be at least 1", map[string]any{"field": "priority", "priority": form.Priority})
	}
	return nil
}

func modalBusy(mode FormMode) error {
	return apperrors.NewValidationError("another ticket form is open", map[string]any{"mode": string(mode)})
}

// open and reset require f.mu.
func (f *FormController) open(mode FormMode, form TicketForm) {
	f.mode = mode
	f.form = form
	f.confirming = false
	f.generation++
}

func (f *FormController) reset() {
	f.mode = FormClosed
	f.form = newTicketForm()
	f.confirming = false
	f.generation++
}

// closeIf closes the modal unless it was reopened while a request ran.
func (f *FormController) closeIf(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation == gen {
		f.reset()
	}
}

func (f *FormController) edit(fn func(*TicketForm)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == FormClosed {
		return
	}
	fn(&f.form)
}
