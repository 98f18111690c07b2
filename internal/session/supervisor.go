// Copyright 2025 Recipe Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/recipe-assistant/internal/pipeline"
)

const (
	// DefaultDeadline bounds one pipeline invocation wall-clock.
	DefaultDeadline = 20 * time.Second
	// DefaultNotifyInterval is the spacing between progress notifications.
	DefaultNotifyInterval = 3 * time.Second
)

// Runner executes one pipeline invocation. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, question string, history []string, profile pipeline.ConstraintProfile) (pipeline.Result, error)
}

// Notifier receives best-effort progress messages while a run is in flight.
// Implementations must tolerate being called from a goroutine other than the
// connection's read loop.
type Notifier interface {
	Progress(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Progress calls f.
func (f NotifierFunc) Progress(message string) { f(message) }

// Supervisor runs one pipeline invocation under a wall-clock deadline with a
// concurrent progress-notification goroutine. The notifier is cancelled and
// joined before Execute returns, so the caller can emit the terminal message
// knowing no stray progress notification will follow it.
type Supervisor struct {
	runner   Runner
	deadline time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewSupervisor creates a supervisor. Non-positive deadline or interval fall
// back to the defaults.
func NewSupervisor(runner Runner, deadline, interval time.Duration, logger *zap.Logger) *Supervisor {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if interval <= 0 {
		interval = DefaultNotifyInterval
	}
	return &Supervisor{
		runner:   runner,
		deadline: deadline,
		interval: interval,
		logger:   logger,
	}
}

// Execute runs one supervised pipeline invocation for a session turn.
// Cancelling ctx cancels the run and the notifier. On deadline expiry the
// partial pipeline state is discarded and a timeout result reporting elapsed
// time is returned; no partial answer is ever surfaced.
func (s *Supervisor) Execute(ctx context.Context, sess *Session, question string, notify Notifier) pipeline.Result {
	start := time.Now()

	runCtx, cancelRun := context.WithTimeout(ctx, s.deadline)
	defer cancelRun()

	notifyCtx, cancelNotify := context.WithCancel(ctx)
	notifierDone := make(chan struct{})
	go func() {
		defer close(notifierDone)
		s.notifyLoop(notifyCtx, start, notify)
	}()

	result, err := s.runner.Run(runCtx, question, sess.History(HistoryWindow), sess.Profile())

	// Stop the notifier and wait for it before anything terminal happens.
	// Requesting cancellation is not enough; a notification racing the final
	// answer would break the outbound ordering guarantee.
	cancelNotify()
	<-notifierDone

	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("Pipeline run timed out",
				zap.String("session_id", sess.ID),
				zap.Duration("elapsed", elapsed))
			return pipeline.Result{
				Status: pipeline.StatusTimeout,
				Answer: fmt.Sprintf("죄송합니다. 응답 시간이 너무 오래 걸렸어요 (%d초). 다시 시도해주세요.", int(elapsed.Seconds())),
			}
		}
		s.logger.Error("Pipeline run failed",
			zap.String("session_id", sess.ID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return pipeline.Result{
			Status: pipeline.StatusError,
			Answer: fmt.Sprintf("오류가 발생했습니다 (%d초). 다시 시도해주세요.", int(elapsed.Seconds())),
		}
	}

	s.logger.Debug("Supervised run finished",
		zap.String("session_id", sess.ID),
		zap.String("status", string(result.Status)),
		zap.Duration("elapsed", elapsed))
	return result
}

// notifyLoop emits a progress message immediately and then on every interval
// until cancelled. It reads only elapsed time, never pipeline state.
func (s *Supervisor) notifyLoop(ctx context.Context, start time.Time, notify Notifier) {
	if notify == nil {
		return
	}

	notify.Progress(progressMessage(0))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= s.deadline {
				return
			}
			notify.Progress(progressMessage(elapsed))
		}
	}
}

// progressMessage picks a stage-flavored "still working" line for the
// elapsed time. The labels follow the pipeline's nominal stage order but are
// keyed purely on elapsed time; the notifier never inspects pipeline state.
func progressMessage(elapsed time.Duration) string {
	var stage string
	switch {
	case elapsed < 3*time.Second:
		stage = "쿼리 재작성 중..."
	case elapsed < 6*time.Second:
		stage = "레시피 검색 중..."
	case elapsed < 10*time.Second:
		stage = "관련성 평가 중..."
	case elapsed < 15*time.Second:
		stage = "답변 생성 중..."
	default:
		stage = "거의 완료..."
	}
	return fmt.Sprintf("%s (%d초)", stage, int(elapsed.Seconds()))
}
