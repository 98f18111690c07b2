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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options configure one pipeline instance. Zero values fall back to the
// defaults the chat service uses.
type Options struct {
	// TopK is the number of documents requested from retrieval.
	TopK int
	// UseRerank enables the second-pass reranker.
	UseRerank bool
	// WebMaxResults bounds fallback web search results.
	WebMaxResults int
}

// DefaultOptions returns the chat service defaults.
func DefaultOptions() Options {
	return Options{TopK: 5, UseRerank: true, WebMaxResults: 3}
}

// State is the transient working set of one pipeline run. It lives only for
// the duration of one Run call and is never shared across concurrent runs.
type State struct {
	OriginalQuestion  string
	RewrittenQuestion string
	Documents         []Document
	NeedsWebSearch    bool
	ConstraintWarning string
	Answer            string
}

// Pipeline sequences the components: rewrite, retrieve, constraint
// pre-check, grade, conditional web search, generate. It is a straight-line
// sequence with one binary fork after grading; no stage re-enters a previous
// one.
type Pipeline struct {
	rewriter  *Rewriter
	retriever *Retriever
	grader    *Grader
	generator *Generator
	web       WebSearcher
	opts      Options
	logger    *zap.Logger
}

// New wires a pipeline from its components.
func New(rewriter *Rewriter, retriever *Retriever, grader *Grader, generator *Generator, web WebSearcher, opts Options, logger *zap.Logger) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.WebMaxResults <= 0 {
		opts.WebMaxResults = DefaultOptions().WebMaxResults
	}
	return &Pipeline{
		rewriter:  rewriter,
		retriever: retriever,
		grader:    grader,
		generator: generator,
		web:       web,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes one full pipeline invocation for a turn. The context carries
// the caller's deadline; cancelling it cancels in-flight collaborator calls.
// Run returns an error only for unrecoverable failures (base retrieval
// outage, context cancellation); every other failure degrades inside its
// component.
func (p *Pipeline) Run(ctx context.Context, question string, history []string, profile ConstraintProfile) (Result, error) {
	start := time.Now()
	state := &State{OriginalQuestion: question}

	state.RewrittenQuestion = p.rewriter.Rewrite(ctx, question, history)

	docs, err := p.retriever.Retrieve(ctx, state.RewrittenQuestion, p.opts.TopK, p.opts.UseRerank)
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("retrieval stage: %w", err)
	}
	state.Documents = docs

	// Pre-generation constraint check on the rewritten question. A match
	// routes straight to the warning branch; grading and web search are
	// skipped because no grounded generation will happen.
	state.ConstraintWarning = CheckConstraints(state.RewrittenQuestion, profile)
	if state.ConstraintWarning != "" {
		p.logger.Info("Constraint conflict in question, taking warning branch",
			zap.String("warning", state.ConstraintWarning),
			zap.Duration("elapsed", time.Since(start)))
		answer, status, err := p.generator.Generate(ctx, state.RewrittenQuestion, nil, history, state.ConstraintWarning, profile)
		if err != nil {
			return Result{Status: StatusError}, fmt.Errorf("generation stage: %w", err)
		}
		state.Answer = answer
		return Result{Status: status, Answer: answer, Documents: state.Documents}, nil
	}

	state.NeedsWebSearch = p.grader.NeedsWebSearch(ctx, state.RewrittenQuestion, state.Documents)
	if state.NeedsWebSearch {
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusError}, err
		}
		// The fallback searcher degrades internally; on provider failure it
		// returns a synthetic explanatory document rather than an error.
		webDocs, err := p.web.Search(ctx, state.RewrittenQuestion, p.opts.WebMaxResults)
		if err != nil {
			p.logger.Warn("Web search returned error despite fallback contract",
				zap.Error(err))
			webDocs = []Document{ErrorDocument("web search failed: " + err.Error())}
		}
		state.Documents = webDocs
	}

	answer, status, err := p.generator.Generate(ctx, state.RewrittenQuestion, state.Documents, history, "", profile)
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("generation stage: %w", err)
	}
	state.Answer = answer

	p.logger.Info("Pipeline run completed",
		zap.String("status", string(status)),
		zap.Bool("web_search", state.NeedsWebSearch),
		zap.Int("documents", len(state.Documents)),
		zap.Duration("elapsed", time.Since(start)))

	return Result{Status: status, Answer: answer, Documents: state.Documents}, nil
}
