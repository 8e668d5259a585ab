package document

import (
	"context"
	"strings"
	"time"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/generation"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	modeSync   = "sync"
	modeStream = "stream"

	streamErrorPrefix = "오류 발생: "
)

// Correct asks the backend to clean up text from one of the user's
// documents and returns the complete result.
func (s *Service) Correct(ctx context.Context, userID, documentID, text string) (*domain.CorrectionResult, error) {
	ctx, span := s.tracer.Start(ctx, "document.Correct", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("document.id", documentID),
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	if _, err := s.Get(ctx, userID, documentID, ""); err != nil {
		return nil, err
	}

	start := time.Now()
	output, err := s.backend.Generate(ctx, generation.CorrectionPrompt(text))
	s.metrics.ObserveGeneration(modeSync, start, err)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("AI correction failed",
			zap.String("user_id", userID),
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		if appErrors.IsGeneration(err) {
			return nil, err
		}
		return nil, appErrors.NewGeneration("AI text correction failed", err)
	}

	if patched, changed := s.fallback.ApplySync(text, output); changed {
		output = patched
		s.metrics.FallbackUsed(modeSync)
		s.logger.Warn("Generated text had no table, fallback table inserted",
			zap.String("document_id", documentID),
		)
	}

	return &domain.CorrectionResult{
		OriginalText:  text,
		CorrectedText: strings.TrimSpace(output),
		ModelUsed:     s.backend.ModelName(),
		Timestamp:     s.now().UTC(),
	}, nil
}

// CorrectStream checks ownership, then streams a study note built from text.
// Fragments arrive in backend order; the channel is closed when the note is
// complete. A backend failure after the ownership check becomes one final
// error fragment rather than an error return. Cancelling ctx stops
// consuming the backend.
func (s *Service) CorrectStream(ctx context.Context, userID, documentID, text string) (<-chan string, error) {
	if _, err := s.Get(ctx, userID, documentID, ""); err != nil {
		return nil, err
	}

	out := make(chan string)
	go s.stream(ctx, documentID, text, out)
	return out, nil
}

func (s *Service) stream(ctx context.Context, documentID, text string, out chan<- string) {
	defer close(out)

	ctx, span := s.tracer.Start(ctx, "document.CorrectStream", trace.WithAttributes(
		attribute.String("document.id", documentID),
	))
	defer span.End()

	send := func(fragment string) bool {
		select {
		case out <- fragment:
			return true
		case <-ctx.Done():
			return false
		}
	}

	start := time.Now()
	fail := func(err error) {
		span.RecordError(err)
		s.metrics.ObserveGeneration(modeStream, start, err)
		s.logger.Error("AI correction stream failed",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		send(streamErrorPrefix + errorText(err))
	}

	chunks, err := s.backend.GenerateStream(ctx, generation.StudyNotePrompt(text))
	if err != nil {
		fail(err)
		return
	}

	var accumulated strings.Builder
	fragments := 0
consume:
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Client went away, stream abandoned", zap.String("document_id", documentID))
			return
		case chunk, ok := <-chunks:
			if !ok {
				break consume
			}
			if chunk.Err != nil {
				fail(chunk.Err)
				return
			}
			accumulated.WriteString(chunk.Text)
			fragments++
			if !send(chunk.Text) {
				return
			}
		}
	}
	s.metrics.ObserveGeneration(modeStream, start, nil)

	if tail := s.fallback.StreamTail(text, accumulated.String()); tail != nil {
		s.metrics.FallbackUsed(modeStream)
		s.logger.Warn("Streamed note had no table, fallback table appended",
			zap.String("document_id", documentID),
		)
		for _, line := range tail {
			if !send(line) {
				return
			}
		}
	}
	span.SetAttributes(attribute.Int("fragments", fragments))
}

func errorText(err error) string {
	if appErr := appErrors.GetAppError(err); appErr != nil {
		if appErr.Cause != nil {
			return appErr.Message + ": " + appErr.Cause.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
