// Package describe renders live alerts into structured spoken-description
// text and hands it to an external synthesis collaborator. The surface is
// deliberately restricted to alerts currently in effect: it answers "what
// is happening now", not "what happened".
package describe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrSynthesisFailed wraps synthesis collaborator errors. The alert remains
// valid; the caller may simply ask again.
var ErrSynthesisFailed = errors.New("synthesis failed")

// AudioRef points at a synthesized audio artifact produced by the
// collaborator. How the artifact is produced or played is not this
// service's concern.
type AudioRef struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Synthesizer is the external text-to-speech collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (AudioRef, error)
}

// SnapshotSource yields the last-committed cycle snapshot. Lookups never
// block behind a cycle in progress.
type SnapshotSource interface {
	Current() *domain.Snapshot
}

// Description is the structured text for one alert.
type Description struct {
	Headline    string `json:"headline"`
	Area        string `json:"area"`
	Timing      string `json:"timing"`
	Instruction string `json:"instruction,omitempty"`
}

// Text flattens the description into the sentence sequence handed to the
// synthesizer.
func (d Description) Text() string {
	out := d.Headline + ". " + d.Area + ". " + d.Timing + "."
	if d.Instruction != "" {
		out += " " + d.Instruction
	}
	return out
}

// Service resolves alerts by identity or index and produces descriptions
// and spoken audio.
type Service struct {
	snapshots SnapshotSource
	synth     Synthesizer
	cache     *audioCache
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	// Hosted synthesis engines rate-limit hard; one request in flight.
	synthMu sync.Mutex
}

// NewService creates a description service. cacheSize bounds the synthesized
// audio cache (keyed by content fingerprint, so an updated alert is re-spoken).
func NewService(snapshots SnapshotSource, synth Synthesizer, cacheSize int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		snapshots: snapshots,
		synth:     synth,
		cache:     newAudioCache(cacheSize),
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Describe returns the structured description for a live alert.
// Ended alerts return domain.ErrNotCurrentlyActive; unknown identities
// return domain.ErrNotFound.
func (s *Service) Describe(identity string) (Description, error) {
	alert, err := s.liveAlert(identity)
	if err != nil {
		return Description{}, err
	}
	return s.describe(alert), nil
}

// DescribeIndex resolves a one-digit index binding in the current snapshot
// and describes the bound alert.
func (s *Service) DescribeIndex(n int) (Description, error) {
	alert, err := s.snapshots.Current().ByIndex(n)
	if err != nil {
		return Description{}, err
	}
	return s.describe(alert), nil
}

// Speak synthesizes the spoken form of a live alert, reusing the cached
// artifact when the alert content has not changed since it was last spoken.
// Synthesis failures are surfaced, not retried; the next request tries again.
func (s *Service) Speak(ctx context.Context, identity string) (AudioRef, error) {
	alert, err := s.liveAlert(identity)
	if err != nil {
		return AudioRef{}, err
	}

	if ref, ok := s.cache.get(alert.Fingerprint); ok {
		s.metrics.SynthesisRequests.WithLabelValues("cache_hit").Inc()
		return ref, nil
	}

	if s.synth == nil {
		s.metrics.SynthesisRequests.WithLabelValues("error").Inc()
		return AudioRef{}, fmt.Errorf("%w: no synthesizer configured", ErrSynthesisFailed)
	}

	s.synthMu.Lock()
	defer s.synthMu.Unlock()

	// Another caller may have synthesized the same content while we waited.
	if ref, ok := s.cache.get(alert.Fingerprint); ok {
		s.metrics.SynthesisRequests.WithLabelValues("cache_hit").Inc()
		return ref, nil
	}

	text := s.describe(alert).Text()
	ref, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.metrics.SynthesisRequests.WithLabelValues("error").Inc()
		s.logger.Error("synthesis failed", "identity", identity, "error", err)
		return AudioRef{}, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	s.metrics.SynthesisRequests.WithLabelValues("success").Inc()
	s.cache.put(alert.Fingerprint, ref)
	return ref, nil
}

func (s *Service) liveAlert(identity string) (domain.Alert, error) {
	alert, state, err := s.snapshots.Current().ByIdentity(identity)
	if err != nil {
		return domain.Alert{}, err
	}
	if !state.Live() || alert.Status != domain.StatusActual {
		return domain.Alert{}, domain.ErrNotCurrentlyActive
	}
	return alert, nil
}

func (s *Service) describe(alert domain.Alert) Description {
	return Description{
		Headline:    headline(alert),
		Area:        area(alert),
		Timing:      timing(alert, s.clock.Now()),
		Instruction: alert.Instruction,
	}
}
