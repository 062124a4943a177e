package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/api/dto"
	"github.com/spec-kit/ticket-board/internal/domain"
	"github.com/spec-kit/ticket-board/internal/events"
	"github.com/spec-kit/ticket-board/internal/repository"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

// CardsAPI is the backend surface the board needs.
type CardsAPI interface {
	ListCards(ctx context.Context) ([]domain.Ticket, error)
	CreateCard(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error)
	UpdateCard(ctx context.Context, id string, changes domain.TicketChanges) (*domain.TicketPatch, error)
	MoveCard(ctx context.Context, id string, status domain.TicketStatus) error
	DeleteCard(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]domain.TeamMember, error)
}

// SessionGate exposes the session state the board depends on.
type SessionGate interface {
	Valid() bool
	Identity() domain.Identity
}

// Column is one rendered board column.
type Column struct {
	Status  domain.TicketStatus
	Title   string
	Tickets []domain.Ticket
}

// DragEndEvent reports where a dragged card was dropped. OverID is the
// destination column, empty when dropped outside any column.
type DragEndEvent struct {
	ActiveID string
	OverID   string
}

// BoardService keeps the ticket store in step with the backend.
type BoardService struct {
	store  *repository.TicketStore
	roster *repository.TeamRoster
	api    CardsAPI
	gate   SessionGate
	logger *zap.Logger
	resync bool

	resyncing atomic.Bool
	resyncs   sync.WaitGroup
}

// BoardDependencies bundles collaborators for the board service.
type BoardDependencies struct {
	Store             *repository.TicketStore
	Roster            *repository.TeamRoster
	API               CardsAPI
	Gate              SessionGate
	Logger            *zap.Logger
	ResyncOnReconnect bool
}

// NewBoardService constructs the service.
func NewBoardService(deps BoardDependencies) *BoardService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	roster := deps.Roster
	if roster == nil {
		roster = repository.NewTeamRoster()
	}
	return &BoardService{
		store:  deps.Store,
		roster: roster,
		api:    deps.API,
		gate:   deps.Gate,
		logger: logger.Named("board"),
		resync: deps.ResyncOnReconnect,
	}
}

// Store returns the backing ticket store.
func (s *BoardService) Store() *repository.TicketStore {
	return s.store
}

// Load fetches tickets and team members. A result is applied only while
// ctx is live; a failed fetch keeps the previous value.
func (s *BoardService) Load(ctx context.Context) error {
	if !s.gate.Valid() {
		return apperrors.NewSessionInvalid("load")
	}
	cardsErr := s.Refresh(ctx)

	members, err := s.api.ListUsers(ctx)
	if err != nil {
		s.logger.Error("fetch team members", zap.Error(err), zap.String("detail", apperrors.Detail(err)))
	} else if ctx.Err() == nil {
		s.roster.Replace(members)
	}
	return errors.Join(cardsErr, err)
}

// Refresh refetches the ticket list and replaces the store contents.
func (s *BoardService) Refresh(ctx context.Context) error {
	if !s.gate.Valid() {
		return apperrors.NewSessionInvalid("refresh")
	}
	tickets, err := s.api.ListCards(ctx)
	if err != nil {
		s.logger.Error("fetch tickets", zap.Error(err), zap.String("detail", apperrors.Detail(err)))
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.store.ReplaceAll(tickets)
	s.logger.Debug("tickets loaded", zap.Int("count", len(tickets)))
	return nil
}

// RegisterHandlers subscribes the store to pushed ticket events and the
// channel lifecycle.
func (s *BoardService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketUpdated, s.handleTicketUpdated)
	dispatcher.Subscribe(events.EventTicketDeleted, s.handleTicketDeleted)
	dispatcher.Subscribe(events.EventConnect, s.handleConnect)
	dispatcher.Subscribe(events.EventConnectError, s.handleConnectionLost)
	dispatcher.Subscribe(events.EventDisconnect, s.handleConnectionLost)
	dispatcher.Subscribe(events.EventReconnectFailed, s.handleReconnectFailed)
}

func (s *BoardService) handleTicketCreated(_ context.Context, event events.Event) error {
	ticket, err := dto.DecodeCard(event.Data)
	if err != nil {
		return apperrors.NewValidationError("malformed ticketCreated payload", map[string]any{"error": err.Error()})
	}
	if !s.store.Insert(ticket) {
		s.logger.Debug("ticketCreated for known id", zap.String("ticket_id", ticket.ID))
	}
	return nil
}

func (s *BoardService) handleTicketUpdated(_ context.Context, event events.Event) error {
	patch, err := dto.DecodeCardPatch(event.Data)
	if err != nil {
		return apperrors.NewValidationError("malformed ticketUpdated payload", map[string]any{"error": err.Error()})
	}
	if !s.store.Merge(patch) {
		s.logger.Debug("ticketUpdated for unknown id", zap.String("ticket_id", patch.ID))
	}
	return nil
}

func (s *BoardService) handleTicketDeleted(_ context.Context, event events.Event) error {
	var payload dto.DeletedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil || payload.ID == "" {
		return apperrors.NewValidationError("malformed ticketDeleted payload", nil)
	}
	s.store.Remove(string(payload.ID))
	return nil
}

func (s *BoardService) handleConnect(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ConnectPayload)
	s.logger.Info("realtime connected",
		zap.String("connection_id", payload.ConnectionID),
		zap.Bool("reconnect", payload.Reconnect))
	if !payload.Reconnect || !s.resync {
		return nil
	}
	s.startResync(ctx)
	return nil
}

// startResync refetches the board in the background so the channel can keep
// reading and Close never waits on an HTTP request. Events missed while
// offline are recovered this way. At most one resync runs at a time; the
// result is dropped once ctx ends.
func (s *BoardService) startResync(ctx context.Context) {
	if !s.resyncing.CompareAndSwap(false, true) {
		s.logger.Debug("resync already running")
		return
	}
	s.resyncs.Add(1)
	go func() {
		defer s.resyncs.Done()
		defer s.resyncing.Store(false)
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("resync after reconnect failed", zap.Error(err))
		}
	}()
}

func (s *BoardService) handleConnectionLost(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.DisconnectPayload)
	s.logger.Warn("realtime connection lost",
		zap.String("event", string(event.Type)),
		zap.String("reason", payload.Reason),
		zap.Int("attempt", payload.Attempt))
	return nil
}

func (s *BoardService) handleReconnectFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.DisconnectPayload)
	s.logger.Error("realtime reconnection abandoned", zap.Int("attempts", payload.Attempt))
	return nil
}

// DragEnd moves a ticket to the column it was dropped on. The store
// changes only after the backend accepts the move.
func (s *BoardService) DragEnd(ctx context.Context, event DragEndEvent) error {
	if event.OverID == "" || event.ActiveID == event.OverID {
		return nil
	}
	ticket, ok := s.store.Get(event.ActiveID)
	if !ok {
		return nil
	}
	status := domain.TicketStatus(event.OverID)
	if !status.Valid() {
		return apperrors.NewValidationError("unknown column", map[string]any{"column": event.OverID})
	}
	if ticket.Status == status {
		return nil
	}
	if !s.gate.Valid() {
		return apperrors.NewSessionInvalid("move")
	}

	if err := s.api.MoveCard(ctx, ticket.ID, status); err != nil {
		s.logger.Error("move ticket",
			zap.String("ticket_id", ticket.ID),
			zap.String("status", string(status)),
			zap.Error(err),
			zap.String("detail", apperrors.Detail(err)))
		return err
	}
	s.store.Merge(domain.TicketPatch{ID: ticket.ID, Status: domain.Some(status)})
	return nil
}

// Columns projects the store into the fixed board columns, keeping
// arrival order. Tickets with an unrecognized status are not shown.
func (s *BoardService) Columns() []Column {
	statuses := domain.BoardStatuses()
	columns := make([]Column, len(statuses))
	index := make(map[domain.TicketStatus]int, len(statuses))
	for i, st := range statuses {
		columns[i] = Column{Status: st, Title: st.Title()}
		index[st] = i
	}
	for _, t := range s.store.List() {
		if i, ok := index[t.Status]; ok {
			columns[i].Tickets = append(columns[i].Tickets, t)
		}
	}
	return columns
}

// Team returns the last fetched team roster.
func (s *BoardService) Team() []domain.TeamMember {
	return s.roster.List()
}
