package app

import (
	"context"

	"github.com/rayhanf/livetrack-companion/internal/store"
)

// EventsUsecase defines the event log query use case.
type EventsUsecase interface {
	QueryGifts(ctx context.Context, filter store.LogFilter) (store.GiftLogResult, error)
	QueryComments(ctx context.Context, filter store.LogFilter) (store.CommentLogResult, error)
}

// EventStore defines store operations needed by EventsService.
type EventStore interface {
	QueryGiftLogs(ctx context.Context, filter store.LogFilter) (store.GiftLogResult, error)
	QueryCommentLogs(ctx context.Context, filter store.LogFilter) (store.CommentLogResult, error)
}

// EventsService implements EventsUsecase.
type EventsService struct {
	Store EventStore
}

// QueryGifts queries persisted gift logs with the given filter.
func (s *EventsService) QueryGifts(ctx context.Context, filter store.LogFilter) (store.GiftLogResult, error) {
	return s.Store.QueryGiftLogs(ctx, filter)
}

// QueryComments queries persisted comment logs with the given filter.
func (s *EventsService) QueryComments(ctx context.Context, filter store.LogFilter) (store.CommentLogResult, error) {
	return s.Store.QueryCommentLogs(ctx, filter)
}
