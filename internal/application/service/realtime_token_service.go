// Package service provides application-level services that orchestrate domain services and repositories
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/npcchatter/backend/internal/application/dto"
	"github.com/npcchatter/backend/internal/domain/models"
	domainService "github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// Pipeline stage names, used for spans and metrics.
const (
	StageVerify    = "verify"
	StageAuthorize = "authorize"
	StageMint      = "mint"
)

// RealtimeTokenService runs the realtime token pipeline: verify the bearer credential,
// authorize the requested channel, mint a transport token request.
type RealtimeTokenService interface {
	IssueToken(ctx context.Context, req *dto.RealtimeTokenRequest) (*models.TokenResponse, error)
}

type realtimeTokenServiceImpl struct {
	authenticator domainService.Authenticator
	authorizer    *domainService.ChannelAuthorizer
	issuer        *domainService.TokenIssuer
	audit         domainService.AuditService
	metrics       domainService.Metrics
	tracer        trace.Tracer
	logger        logger.Logger
}

// NewRealtimeTokenService creates the pipeline.
func NewRealtimeTokenService(
	authenticator domainService.Authenticator,
	authorizer *domainService.ChannelAuthorizer,
	issuer *domainService.TokenIssuer,
	audit domainService.AuditService,
	metrics domainService.Metrics,
	tracer trace.Tracer,
	log logger.Logger,
) RealtimeTokenService {
	return &realtimeTokenServiceImpl{
		authenticator: authenticator,
		authorizer:    authorizer,
		issuer:        issuer,
		audit:         audit,
		metrics:       metrics,
		tracer:        tracer,
		logger:        log.WithComponent("RealtimeTokenService"),
	}
}

type pipelineResult struct {
	resp      *models.TokenResponse
	principal *models.AuthenticatedPrincipal
	err       error
}

// IssueToken runs the pipeline on a goroutine that outlives the caller's cancellation, so
// upstream calls already in flight may finish. If the caller goes away first, the result is
// discarded and the request is recorded as cancelled. Logging, metrics and the audit event are
// written after the result has been handed back.
func (s *realtimeTokenServiceImpl) IssueToken(ctx context.Context, req *dto.RealtimeTokenRequest) (*models.TokenResponse, error) {
	start := time.Now()
	results := make(chan pipelineResult, 1)
	var claimed atomic.Bool

	go func() {
		workCtx := context.WithoutCancel(ctx)
		res := s.run(workCtx, req)

		if !claimed.CompareAndSwap(false, true) {
			s.finish(workCtx, req, res.principal, models.AuditOutcomeCancelled, context.Canceled, start)
			return
		}
		results <- res
		s.finish(workCtx, req, res.principal, outcomeOf(res.err), res.err, start)
	}()

	select {
	case res := <-results:
		return res.resp, res.err
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			s.logger.Warn(ctx, "Caller went away before the token was issued",
				logger.String("request_id", req.RequestID),
			)
			return nil, ctx.Err()
		}
		// the worker already owns the result
		res := <-results
		return res.resp, res.err
	}
}

// run executes Verifying, Authorizing and Minting strictly in order.
func (s *realtimeTokenServiceImpl) run(ctx context.Context, req *dto.RealtimeTokenRequest) pipelineResult {
	ctx, span := s.tracer.Start(ctx, "realtime.IssueToken", trace.WithAttributes(
		attribute.String("realtime.channel", req.Channel),
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()

	var res pipelineResult
	err := s.stage(ctx, StageVerify, func(ctx context.Context) error {
		var err error
		res.principal, err = s.authenticator.Verify(ctx, req.Bearer)
		return err
	})
	if err != nil {
		res.err = err
		return s.endSpan(span, res)
	}
	span.SetAttributes(attribute.String("enduser.id", res.principal.SubjectID))

	var grant *models.CapabilityGrant
	if req.Channel != "" {
		err = s.stage(ctx, StageAuthorize, func(ctx context.Context) error {
			var err error
			grant, err = s.authorizer.Authorize(ctx, res.principal, req.Channel)
			return err
		})
		if err != nil {
			res.err = err
			return s.endSpan(span, res)
		}
	}

	res.err = s.stage(ctx, StageMint, func(ctx context.Context) error {
		var err error
		res.resp, err = s.issuer.Issue(ctx, res.principal, grant)
		return err
	})
	return s.endSpan(span, res)
}

func (s *realtimeTokenServiceImpl) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "realtime."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordPipelineStage(name, err == nil, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *realtimeTokenServiceImpl) endSpan(span trace.Span, res pipelineResult) pipelineResult {
	if res.err != nil {
		span.SetStatus(codes.Error, string(errors.CodeOf(res.err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res
}

// finish logs, counts and audits the terminal state of one request.
func (s *realtimeTokenServiceImpl) finish(
	ctx context.Context,
	req *dto.RealtimeTokenRequest,
	principal *models.AuthenticatedPrincipal,
	outcome models.AuditOutcome,
	err error,
	start time.Time,
) {
	code := ""
	if err != nil && outcome != models.AuditOutcomeCancelled {
		code = string(errors.CodeOf(err))
	}
	subject := ""
	if principal != nil {
		subject = principal.SubjectID
	}
	duration := time.Since(start)
	s.metrics.RecordTokenIssue(string(outcome), code, duration)

	fields := logger.Fields{
		"outcome":    string(outcome),
		"subject_id": subject,
		"channel":    req.Channel,
		"request_id": req.RequestID,
		"latency_ms": duration.Milliseconds(),
	}
	if code != "" {
		fields["code"] = code
	}
	if appErr, ok := errors.AsAppError(err); ok {
		if kid, ok := appErr.Metadata()["key_id"]; ok {
			fields["key_id"] = kid
		}
	}
	switch outcome {
	case models.AuditOutcomeIssued:
		s.logger.Info(ctx, "Realtime token issued", fields)
	case models.AuditOutcomeDenied, models.AuditOutcomeCancelled:
		s.logger.Warn(ctx, "Realtime token not issued", fields)
	default:
		s.logger.Error(ctx, "Realtime token request failed", err, fields)
	}

	event := models.AuditEvent{
		EventID:   uuid.NewString(),
		SubjectID: subject,
		Channel:   req.Channel,
		Outcome:   outcome,
		Code:      code,
		RequestID: req.RequestID,
		ClientIP:  req.ClientIP,
		Timestamp: time.Now().UTC(),
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish audit event", logger.String("event_id", event.EventID))
	}
}

// outcomeOf classifies a pipeline error. Credential and channel failures are denials;
// everything else is a failure of the service.
func outcomeOf(err error) models.AuditOutcome {
	if err == nil {
		return models.AuditOutcomeIssued
	}
	switch errors.KindOf(err) {
	case errors.KindUnauthenticated, errors.KindForbidden:
		return models.AuditOutcomeDenied
	default:
		return models.AuditOutcomeFailed
	}
}
