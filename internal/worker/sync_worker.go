package worker

import (
	"github.com/spec-kit/ticket-board/internal/events"
	"github.com/spec-kit/ticket-board/internal/service"
)

// StartSyncWorker registers the board's handlers for pushed ticket events
// and channel lifecycle events.
func StartSyncWorker(board *service.BoardService, dispatcher events.Dispatcher) {
	if board == nil || dispatcher == nil {
		return
	}
	board.RegisterHandlers(dispatcher)
}
