package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/api/dto"
	"github.com/spec-kit/ticket-board/internal/config"
	"github.com/spec-kit/ticket-board/internal/domain"
	"github.com/spec-kit/ticket-board/internal/observability"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

const (
	routeCards = "/cards"
	routeCard  = "/cards/:id"
	routeUsers = "/users"
)

// TokenSource yields the current bearer token.
type TokenSource interface {
	Token() string
}

// CardsClient talks to the ticket backend's REST API.
type CardsClient struct {
	baseURL string
	tokens  TokenSource
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCardsClient constructs a client for cfg.BaseURL.
func NewCardsClient(cfg config.APIConfig, tokens TokenSource, logger *zap.Logger, metrics *observability.Metrics) *CardsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardsClient{
		baseURL: cfg.BaseURL,
		tokens:  tokens,
		timeout: cfg.RequestTimeout(),
		logger:  logger,
		metrics: metrics,
	}
}

// ListCards GET /cards.
func (c *CardsClient) ListCards(ctx context.Context) ([]domain.Ticket, error) {
	body, err := c.do(ctx, fiber.MethodGet, routeCards, routeCards, nil)
	if err != nil {
		return nil, err
	}
	var records []dto.CardRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("decode cards: %w", err))
	}
	tickets := make([]domain.Ticket, 0, len(records))
	for _, rec := range records {
		tickets = append(tickets, rec.Ticket())
	}
	return tickets, nil
}

// CreateCard POST /cards.
func (c *CardsClient) CreateCard(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error) {
	body, err := c.do(ctx, fiber.MethodPost, routeCards, routeCards, dto.NewCreateCardRequest(draft))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	ticket, err := dto.DecodeCard(body)
	if err != nil {
		c.logger.Warn("created card response not decodable", zap.Error(err))
		return nil, nil
	}
	return &ticket, nil
}

// UpdateCard PUT /cards/:id with the edit form fields. The returned patch
// reflects the server record, or is nil when the server sent no body.
func (c *CardsClient) UpdateCard(ctx context.Context, id string, changes domain.TicketChanges) (*domain.TicketPatch, error) {
	body, err := c.do(ctx, fiber.MethodPut, routeCard, cardPath(id), dto.NewUpdateCardRequest(changes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	patch, err := dto.DecodeCardPatch(body)
	if err != nil {
		c.logger.Warn("updated card response not decodable", zap.String("ticket_id", id), zap.Error(err))
		return nil, nil
	}
	return &patch, nil
}

// MoveCard PUT /cards/:id with a status-only body.
func (c *CardsClient) MoveCard(ctx context.Context, id string, status domain.TicketStatus) error {
	_, err := c.do(ctx, fiber.MethodPut, routeCard, cardPath(id), dto.StatusUpdateRequest{Status: status})
	return err
}

// DeleteCard DELETE /cards/:id.
func (c *CardsClient) DeleteCard(ctx context.Context, id string) error {
	_, err := c.do(ctx, fiber.MethodDelete, routeCard, cardPath(id), nil)
	return err
}

// ListUsers GET /users.
func (c *CardsClient) ListUsers(ctx context.Context) ([]domain.TeamMember, error) {
	body, err := c.do(ctx, fiber.MethodGet, routeUsers, routeUsers, nil)
	if err != nil {
		return nil, err
	}
	var records []dto.UserRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("decode users: %w", err))
	}
	members := make([]domain.TeamMember, 0, len(records))
	for _, rec := range records {
		members = append(members, rec.TeamMember())
	}
	return members, nil
}

func cardPath(id string) string {
	return routeCards + "/" + url.PathEscape(id)
}

// do performs one request. route is the templated path used for metrics.
func (c *CardsClient) do(ctx context.Context, method, route, path string, payload any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token := c.tokens.Token()
	if token == "" {
		return nil, apperrors.NewSessionInvalid(string(domain.InvalidReasonMissing))
	}

	agent := newAgent(method, c.baseURL+path)
	requestID := uuid.NewString()
	agent.Set(fiber.HeaderAuthorization, "Bearer "+token).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		Set(fiber.HeaderXRequestID, requestID)
	if payload != nil {
		agent.JSON(payload)
	}
	if timeout := c.timeoutFor(ctx); timeout > 0 {
		agent.Timeout(timeout)
	}

	start := time.Now()
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := apperrors.NewTransportError(method, route, errors.Join(errs...))
		c.metrics.RecordError(route, method, apperrors.CodeTransport)
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path),
			zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	c.metrics.RecordRequest(route, method, status, time.Since(start))

	// The caller went away while the request was in flight; drop the result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		err := apperrors.NewRequestFailed(method, path, status, body)
		c.metrics.RecordError(route, method, apperrors.CodeRequestFailed)
		return nil, err
	}
	c.logger.Debug("request done", zap.String("method", method), zap.String("path", path),
		zap.Int("status", status), zap.String("request_id", requestID))
	return body, nil
}

func (c *CardsClient) timeoutFor(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func newAgent(method, target string) *fiber.Agent {
	switch method {
	case fiber.MethodPost:
		return fiber.Post(target)
	case fiber.MethodPut:
		return fiber.Put(target)
	case fiber.MethodDelete:
		return fiber.Delete(target)
	default:
		return fiber.Get(target)
	}
}
