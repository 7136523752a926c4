package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"eventstream/internal/domain"

	"golang.org/x/sync/singleflight"
)

// cacheMinAge keeps pages whose cursor is too close to now out of the cache, since a
// message persisted in the same instant could still land before the cursor.
const cacheMinAge = time.Second

type chatService struct {
	repo        domain.ChatMessageRepository
	cache       domain.HistoryCache
	broadcaster domain.Broadcaster
	logger      *slog.Logger
	replayLimit int

	seq *sequencer
	sf  singleflight.Group
	now func() time.Time

	// generations counts clears per event so a page read before a clear is never cached after it.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewChatService returns the message pipeline. Submissions, clears and joins for the same
// event run one at a time, so broadcast order always equals persist order.
func NewChatService(
	repo domain.ChatMessageRepository,
	cache domain.HistoryCache,
	broadcaster domain.Broadcaster,
	replayLimit int,
	logger *slog.Logger,
) domain.ChatService {
	if replayLimit <= 0 {
		replayLimit = domain.DefaultHistoryLimit
	}
	return &chatService{
		repo:        repo,
		cache:       cache,
		broadcaster: broadcaster,
		logger:      logger,
		replayLimit: replayLimit,
		seq:         newSequencer(),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

func (s *chatService) Submit(ctx context.Context, eventID string, sender domain.Identity, body string) (*domain.ChatMessage, error) {
	body, err := domain.NormalizeMessageBody(body)
	if err != nil {
		return nil, err
	}
	msg := domain.NewChatMessage(eventID, sender, body)

	var submitErr error
	s.seq.Do(eventID, func() {
		if err := ctx.Err(); err != nil {
			submitErr = err
			return
		}
		if err := s.repo.Append(ctx, msg); err != nil {
			submitErr = fmt.Errorf("append chat message: %w", err)
			return
		}
		s.broadcaster.Broadcast(eventID, domain.FrameNewMessage, msg, "")
	})
	if submitErr != nil {
		return nil, submitErr
	}
	return msg, nil
}

func (s *chatService) History(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, error) {
	q = q.Normalize()

	// The latest page changes with every message, so it always comes from the store.
	if q.Before == nil || s.now().Sub(*q.Before) < cacheMinAge {
		msgs, err := s.repo.ListBefore(ctx, eventID, q)
		if err != nil {
			return nil, fmt.Errorf("list chat history: %w", err)
		}
		return msgs, nil
	}

	key := eventID + ":" + strconv.FormatInt(q.Before.UnixNano(), 10) + ":" + strconv.Itoa(q.Limit)
	result, err, _ := s.sf.Do(key, func() (any, error) {
		return s.fetchWithCache(ctx, eventID, q)
	})
	if err != nil {
		return nil, err
	}
	msgs, ok := result.([]*domain.ChatMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return msgs, nil
}

func (s *chatService) fetchWithCache(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, error) {
	cached, cacheGen, err := s.cache.Get(ctx, eventID, q)
	if err == nil {
		return cached, nil
	}
	// Without a generation observed before the store read, the page cannot be stored safely.
	cacheable := errors.Is(err, domain.ErrCacheMiss)
	if !cacheable {
		s.logger.WarnContext(ctx, "history cache get failed", "event_id", eventID, "err", err)
	}

	gen := s.generation(eventID)
	msgs, err := s.repo.ListBefore(ctx, eventID, q)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	if !cacheable || s.generation(eventID) != gen {
		return msgs, nil
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.cache.Set(setCtx, eventID, cacheGen, q, msgs); err != nil {
		s.logger.WarnContext(ctx, "history cache set failed", "event_id", eventID, "err", err)
	}
	return msgs, nil
}

func (s *chatService) Clear(ctx context.Context, eventID string) error {
	var clearErr error
	s.seq.Do(eventID, func() {
		if err := ctx.Err(); err != nil {
			clearErr = err
			return
		}
		removed, err := s.repo.DeleteByEvent(ctx, eventID)
		if err != nil {
			clearErr = fmt.Errorf("delete chat messages: %w", err)
			return
		}
		s.bumpGeneration(eventID)
		if err := s.cache.Invalidate(context.WithoutCancel(ctx), eventID); err != nil {
			s.logger.ErrorContext(ctx, "history cache invalidation failed", "event_id", eventID, "err", err)
		}
		s.logger.InfoContext(ctx, "chat cleared", "event_id", eventID, "removed", removed)
	})
	return clearErr
}

func (s *chatService) Join(ctx context.Context, eventID string, attach func(history []*domain.ChatMessage)) error {
	var joinErr error
	s.seq.Do(eventID, func() {
		if err := ctx.Err(); err != nil {
			joinErr = err
			return
		}
		history, err := s.repo.ListBefore(ctx, eventID, domain.HistoryQuery{Limit: s.replayLimit})
		if err != nil {
			joinErr = fmt.Errorf("load join history: %w", err)
			return
		}
		attach(history)
	})
	return joinErr
}

func (s *chatService) generation(eventID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[eventID]
}

func (s *chatService) bumpGeneration(eventID string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[eventID]++
}
