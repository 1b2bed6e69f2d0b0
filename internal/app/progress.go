package app

import (
	"context"
	"sync"
	"time"
)

// ProgressUpdate carries the overall progress of a sending. The live feed
// never carries the answer histogram.
type ProgressUpdate struct {
	Sending   string    `json:"sending"`
	Progress  Stat      `json:"progress"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressHub fans progress updates out to subscribers of a sending.
type ProgressHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan ProgressUpdate]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subscribers: make(map[string]map[chan ProgressUpdate]struct{})}
}

// Subscribe registers a channel for a sending token. The caller must invoke
// the returned cancel function to avoid leaks.
func (h *ProgressHub) Subscribe(token string, initial ProgressUpdate) (<-chan ProgressUpdate, func()) {
	ch := make(chan ProgressUpdate, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[token]
	if !ok {
		subs = make(map[chan ProgressUpdate]struct{})
		h.subscribers[token] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[token]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, token)
		}
	}
	return ch, cancel
}

// Publish delivers an update to every subscriber of its sending. A slow
// subscriber loses its oldest pending update, never the newest.
func (h *ProgressHub) Publish(update ProgressUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[update.Sending] {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

func (h *ProgressHub) watched(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[token]) > 0
}

// SubscribeProgress streams the progress of a sending, starting with its
// current value.
func (s *QuizService) SubscribeProgress(ctx context.Context, token string) (<-chan ProgressUpdate, func(), error) {
	sending, err := s.sendingByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	quiz, err := s.quizOf(ctx, sending)
	if err != nil {
		return nil, nil, err
	}
	answers, err := s.store.Answers(ctx, AnswerFilter{SendingID: sending.ID})
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.progress.Subscribe(sending.DateToken(), ProgressUpdate{
		Sending:   sending.DateToken(),
		Progress:  overallProgress(quiz, answers),
		UpdatedAt: s.now(),
	})
	return ch, cancel, nil
}
