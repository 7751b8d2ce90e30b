// Package flagship is the public facade of the on-device decision SDK. A
// Client evaluates experiments, feature flags, remote config parameters and
// in-app message eligibility against an in-memory workspace snapshot, and
// ships the resulting telemetry events in durable batches.
//
// Evaluation never fails from the caller's point of view: any internal error
// degrades to the caller-supplied default with a reason code explaining why.
package flagship

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/bucket"
	"github.com/TimurManjosov/flagship-go-sdk/internal/config"
	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/event"
	"github.com/TimurManjosov/flagship-go-sdk/internal/flow"
	"github.com/TimurManjosov/flagship-go-sdk/internal/match"
	"github.com/TimurManjosov/flagship-go-sdk/internal/storage"
	"github.com/TimurManjosov/flagship-go-sdk/internal/telemetry"
	"github.com/TimurManjosov/flagship-go-sdk/internal/transport"
	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// controlVariationKey is the variation meaning "feature off".
const controlVariationKey = "A"

// Config re-exports the internal configuration type for construction.
type Config = config.Config

// LoadConfig reads configuration from the environment and an optional .env
// file.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	transport transport.Client
	repo      storage.KeyValueRepository
	now       func() time.Time
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport replaces the HTTP transport used for event dispatch.
func WithTransport(t transport.Client) Option {
	return func(o *options) { o.transport = t }
}

// WithKeyValueRepository sets the repository backing the dedup cache and the
// impression tracker. Defaults to an in-memory repository.
func WithKeyValueRepository(r storage.KeyValueRepository) Option {
	return func(o *options) { o.repo = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Client is the SDK entry point. Safe for concurrent use.
type Client struct {
	cfg    *Config
	logger *slog.Logger
	now    func() time.Time

	holder      *workspace.Holder
	core        *evaluator.Delegating
	factory     *event.Factory
	dedup       *event.DedupCache
	processor   *event.Processor
	store       storage.EventStore
	impressions *storage.ImpressionTracker
	metrics     *telemetry.Server
}

// NewClient builds and starts a client. Close must be called to flush
// buffered events and release the durable store.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = transport.NewHTTPClient(cfg.RequestTimeout)
	}
	if o.repo == nil {
		o.repo = storage.NewMemoryKeyValueRepository()
	}
	logger := o.logger.With(slog.String("component", "flagship"))

	var store storage.EventStore
	if cfg.EventStorePath != "" {
		s, err := storage.OpenEventStore(cfg.EventStorePath)
		if err != nil {
			return nil, fmt.Errorf("open event store: %w", err)
		}
		store = s
	}

	telemetry.Init()
	var metrics *telemetry.Server
	if cfg.MetricsAddr != "" {
		metrics = telemetry.NewServer(cfg.MetricsAddr)
		go func() {
			if err := metrics.Start(); err != nil {
				logger.Warn("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	conditions := match.NewConditionMatcher()
	targets := match.NewTargetMatcher(conditions)
	bucketer := bucket.New()
	actions := bucket.NewActionResolver(bucketer)

	impressions := storage.NewImpressionTracker(o.repo)

	core := evaluator.NewDelegating()
	core.Register(flow.NewExperimentHandler(targets, bucketer, actions))
	core.Register(flow.NewRemoteConfigHandler(targets, bucketer))
	core.Register(flow.NewMessageHandler(targets, impressions))
	conditions.SetEvaluator(core)

	dedup := event.NewDedupCache(cfg.DedupInterval, o.repo, o.now)
	dispatcher := event.NewDispatcher(o.transport, cfg.EventBaseURL, cfg.SDKKey, logger)
	processor := event.NewProcessor(dedup, store, dispatcher, logger, event.ProcessorOptions{
		BatchSize:     cfg.BatchSize,
		Capacity:      cfg.QueueCapacity,
		FlushInterval: cfg.FlushInterval,
		Retention:     cfg.EventRetention,
	})
	processor.Start()

	return &Client{
		cfg:         cfg,
		logger:      logger,
		now:         o.now,
		holder:      workspace.NewHolder(),
		core:        core,
		factory:     event.NewFactory(o.now),
		dedup:       dedup,
		processor:   processor,
		store:       store,
		impressions: impressions,
		metrics:     metrics,
	}, nil
}

// UpdateWorkspace decodes a workspace snapshot from JSON and publishes it
// atomically. In-flight evaluations keep the snapshot they started with.
func (c *Client) UpdateWorkspace(data []byte) error {
	ws, err := workspace.Decode(data)
	if err != nil {
		return fmt.Errorf("decode workspace: %w", err)
	}
	c.holder.Update(ws)
	return nil
}

// EvaluateExperiment decides the variation for the given A/B test. The
// default variation key is returned whenever the user cannot be allocated.
func (c *Client) EvaluateExperiment(experimentKey int64, u User, defaultVariationKey string) ExperimentDecision {
	decision := ExperimentDecision{
		ExperimentKey: experimentKey,
		VariationKey:  defaultVariationKey,
	}

	ws, resolved, reason := c.prepare(u)
	if reason != "" {
		decision.Reason = reason
		c.countEvaluation(evaluator.KindExperiment, reason)
		return decision
	}
	exp, ok := ws.GetExperiment(experimentKey)
	if !ok {
		decision.Reason = evaluator.ReasonExperimentNotFound
		c.countEvaluation(evaluator.KindExperiment, decision.Reason)
		return decision
	}

	req := evaluator.Request{
		Kind:                evaluator.KindExperiment,
		Workspace:           ws,
		User:                resolved,
		Timestamp:           c.now(),
		Experiment:          &exp,
		DefaultVariationKey: defaultVariationKey,
	}
	evaluation, ok := c.evaluate(req)
	if !ok {
		decision.Reason = evaluator.ReasonException
		return decision
	}

	decision.VariationKey = evaluation.VariationKey
	decision.Reason = evaluation.Reason
	decision.Config = c.parameterConfig(ws, evaluation.ParameterConfigID)
	c.publish(req, evaluation)
	return decision
}

// EvaluateFeatureFlag decides whether the given feature is on for the user.
// The control variation "A" means off; any other variation means on.
func (c *Client) EvaluateFeatureFlag(featureKey int64, u User) FeatureFlagDecision {
	decision := FeatureFlagDecision{
		FeatureKey:   featureKey,
		VariationKey: controlVariationKey,
	}

	ws, resolved, reason := c.prepare(u)
	if reason != "" {
		decision.Reason = reason
		c.countEvaluation(evaluator.KindFeatureFlag, reason)
		return decision
	}
	flag, ok := ws.GetFeatureFlag(featureKey)
	if !ok {
		decision.Reason = evaluator.ReasonFeatureFlagNotFound
		c.countEvaluation(evaluator.KindFeatureFlag, decision.Reason)
		return decision
	}

	req := evaluator.Request{
		Kind:                evaluator.KindFeatureFlag,
		Workspace:           ws,
		User:                resolved,
		Timestamp:           c.now(),
		Experiment:          &flag,
		DefaultVariationKey: controlVariationKey,
	}
	evaluation, ok := c.evaluate(req)
	if !ok {
		decision.Reason = evaluator.ReasonException
		return decision
	}

	decision.VariationKey = evaluation.VariationKey
	decision.IsOn = evaluation.VariationKey != controlVariationKey
	decision.Reason = evaluation.Reason
	decision.Config = c.parameterConfig(ws, evaluation.ParameterConfigID)
	c.publish(req, evaluation)
	return decision
}

// EvaluateRemoteConfig resolves the remote config parameter for the user. The
// caller default is returned on any miss or type mismatch.
func (c *Client) EvaluateRemoteConfig(parameterKey string, u User, defaultValue any) RemoteConfigDecision {
	decision := RemoteConfigDecision{
		ParameterKey: parameterKey,
		Value:        defaultValue,
	}

	ws, resolved, reason := c.prepare(u)
	if reason != "" {
		decision.Reason = reason
		c.countEvaluation(evaluator.KindRemoteConfig, reason)
		return decision
	}
	param, ok := ws.GetRemoteConfigParameter(parameterKey)
	if !ok {
		decision.Reason = evaluator.ReasonRemoteConfigNotFound
		c.countEvaluation(evaluator.KindRemoteConfig, decision.Reason)
		return decision
	}

	req := evaluator.Request{
		Kind:         evaluator.KindRemoteConfig,
		Workspace:    ws,
		User:         resolved,
		Timestamp:    c.now(),
		Parameter:    &param,
		DefaultValue: defaultValue,
	}
	evaluation, ok := c.evaluate(req)
	if !ok {
		decision.Reason = evaluator.ReasonException
		return decision
	}

	decision.Value = evaluation.Value
	decision.Reason = evaluation.Reason
	c.publish(req, evaluation)
	return decision
}

// EvaluateInAppMessage decides whether the given message is eligible to show
// to the user right now.
func (c *Client) EvaluateInAppMessage(messageKey int64, u User) InAppMessageDecision {
	decision := InAppMessageDecision{MessageKey: messageKey}

	ws, resolved, reason := c.prepare(u)
	if reason != "" {
		decision.Reason = reason
		c.countEvaluation(evaluator.KindInAppMessage, reason)
		return decision
	}
	msg, ok := ws.GetInAppMessage(messageKey)
	if !ok {
		decision.Reason = evaluator.ReasonMessageNotFound
		c.countEvaluation(evaluator.KindInAppMessage, decision.Reason)
		return decision
	}

	req := evaluator.Request{
		Kind:      evaluator.KindInAppMessage,
		Workspace: ws,
		User:      resolved,
		Timestamp: c.now(),
		Message:   &msg,
		Platform:  c.cfg.Platform,
	}
	evaluation, ok := c.evaluate(req)
	if !ok {
		decision.Reason = evaluator.ReasonException
		return decision
	}

	decision.Eligible = evaluation.Eligible
	decision.LayoutKey = evaluation.LayoutKey
	decision.Reason = evaluation.Reason
	return decision
}

// Track records a custom event for the user. Unregistered event keys are
// recorded with a zero event type id.
func (c *Client) Track(eventKey string, u User, value float64, properties map[string]any) {
	resolved := u.resolve(c.cfg.Platform)
	if len(resolved.Identifiers) == 0 {
		return
	}

	var eventType workspace.EventType
	if ws, ok := c.holder.Get(); ok {
		eventType, _ = ws.GetEventType(eventKey)
	}
	track := c.factory.CreateTrack(resolved, c.now(), eventType, eventKey, value, properties)
	c.dedup.InvalidateIfIdentityChanged(resolved)
	c.processor.Process(track)
}

// RecordImpression notes that the given message was shown to the user, for
// frequency capping.
func (c *Client) RecordImpression(messageKey int64) error {
	return c.impressions.RecordImpression(messageKey, c.now())
}

// HideMessage suppresses the message for the given duration, as after an
// explicit user dismissal.
func (c *Client) HideMessage(messageKey int64, d time.Duration) {
	c.impressions.Hide(messageKey, c.now().Add(d))
}

// Flush dispatches buffered events immediately. Intended for app
// backgrounding.
func (c *Client) Flush() {
	c.processor.Flush()
}

// Close flushes buffered events, persists the dedup cache, stops the metrics
// server and releases the durable store.
func (c *Client) Close() error {
	c.processor.Stop()
	if c.metrics != nil {
		if err := c.metrics.Shutdown(context.Background()); err != nil {
			c.logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
		}
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// prepare resolves the workspace snapshot and user identity, returning a
// degradation reason when either is unavailable.
func (c *Client) prepare(u User) (workspace.Workspace, user.User, string) {
	ws, ok := c.holder.Get()
	if !ok {
		return nil, user.User{}, evaluator.ReasonSDKNotReady
	}
	resolved := u.resolve(c.cfg.Platform)
	if len(resolved.Identifiers) == 0 {
		return nil, user.User{}, evaluator.ReasonInvalidInput
	}
	return ws, resolved, ""
}

// evaluate runs one top-level request. Internal errors are logged and
// reported as a degradation, never surfaced to the caller.
func (c *Client) evaluate(req evaluator.Request) (evaluator.Evaluation, bool) {
	ctx := evaluator.NewContext()
	evaluation, err := c.core.Evaluate(req, ctx)
	if err != nil {
		c.logger.Warn("evaluation failed",
			slog.String("kind", string(req.Kind)),
			slog.Int64("entity_id", req.EntityID()),
			slog.String("error", err.Error()))
		c.countEvaluation(req.Kind, evaluator.ReasonException)
		return evaluator.Evaluation{}, false
	}
	c.countEvaluation(req.Kind, evaluation.Reason)
	return evaluation, true
}

// publish turns an evaluation into telemetry events and hands them to the
// queue.
func (c *Client) publish(req evaluator.Request, evaluation evaluator.Evaluation) {
	c.dedup.InvalidateIfIdentityChanged(req.User)
	for _, e := range c.factory.Create(req, evaluation) {
		c.processor.Process(e)
	}
}

func (c *Client) parameterConfig(ws workspace.Workspace, configID int64) ParameterConfig {
	if configID == 0 {
		return ParameterConfig{}
	}
	pc, ok := ws.GetParameterConfiguration(configID)
	if !ok {
		return ParameterConfig{}
	}
	return ParameterConfig{parameters: pc.Parameters}
}

func (c *Client) countEvaluation(kind evaluator.Kind, reason string) {
	telemetry.EvaluationsTotal.WithLabelValues(string(kind), reason).Inc()
}
