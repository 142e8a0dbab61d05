package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/modules/activity"
	"go.uber.org/zap"
)

var ErrUnknownIdentifier = errors.New("unknown workflow identifier")

// ValidationError carries a failed contract check. Nothing was delivered.
type ValidationError struct {
	Result CheckResult
}

func (e *ValidationError) Error() string {
	return "payload rejected: " + e.Result.ErrorText()
}

// Recorder keeps the delivery history shown to users.
type Recorder interface {
	Record(ctx context.Context, e activity.Entry) error
	Mark(ctx context.Context, requestID string, o activity.Outcome) error
}

var defaultOperations = map[Identifier]string{
	Autofill:         "autofill",
	RealEstateIngest: "ingest",
	AvatarVideo:      "render",
}

// DefaultOperation is the operation used when a trigger names none.
func DefaultOperation(id Identifier) string {
	if op, ok := defaultOperations[id]; ok {
		return op
	}
	return "generate"
}

// TriggerRequest is a user initiated workflow run.
type TriggerRequest struct {
	Identifier Identifier
	Operation  string
	Fields     map[string]any
	Attempts   int
	UserID     string
}

type TriggerResult struct {
	Delivery *SendResult `json:"delivery"`
	Warnings []Warning   `json:"warnings"`
}

type Service struct {
	builder     *Builder
	client      *Client
	activity    Recorder
	attempts    int
	maxAttempts int
	logger      *zap.Logger
}

func NewService(builder *Builder, client *Client, rec Recorder, attempts, maxAttempts int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}
	if maxAttempts < attempts {
		maxAttempts = attempts
	}
	return &Service{
		builder:     builder,
		client:      client,
		activity:    rec,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		logger:      logger.Named("AutomationService"),
	}
}

// Builder returns the payload builder used for triggers.
func (s *Service) Builder() *Builder { return s.builder }

// Check builds the payload a trigger would send and validates it.
func (s *Service) Check(ctx context.Context, id Identifier, operation string, fields map[string]any) CheckResult {
	if strings.TrimSpace(operation) == "" {
		operation = DefaultOperation(id)
	}
	p := s.builder.Build(ctx, id, operation, fields, BuildOptions{AutoUser: true})
	return ValidateAs(id, p)
}

// Trigger builds, validates and delivers one workflow run, recording it in
// the activity log. A workflow answering non-2xx is reported through the
// returned delivery, not as an error.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	if !req.Identifier.Known() {
		return nil, ErrUnknownIdentifier
	}
	operation := req.Operation
	if strings.TrimSpace(operation) == "" {
		operation = DefaultOperation(req.Identifier)
	}
	p := s.builder.Build(ctx, req.Identifier, operation, req.Fields, BuildOptions{AutoUser: true})
	return s.Deliver(ctx, req.UserID, p, req.Attempts)
}

// Deliver validates a built payload and sends it on behalf of userID.
// attempts below one selects the configured default.
func (s *Service) Deliver(ctx context.Context, userID string, p *Payload, attempts int) (*TriggerResult, error) {
	if p == nil {
		return nil, errors.New("automation: nil payload")
	}
	id := p.Identifier
	check := ValidateAs(id, p)
	if !check.OK {
		return nil, &ValidationError{Result: check}
	}
	p = check.Normalized
	requestID := p.RequestID()

	s.record(ctx, activity.Entry{
		UserID:     userID,
		Kind:       string(id),
		RequestID:  requestID,
		AssetCount: assetCount(p.Fields),
	})

	res, err := s.client.SendWithRetry(ctx, id, p, RetryOptions{
		Attempts: s.clampAttempts(attempts),
		OnAttempt: func(info AttemptInfo) {
			if info.Attempt > 1 {
				s.logger.Info("workflow attempt",
					zap.String("identifier", string(id)),
					zap.String("request_id", requestID),
					zap.Int("attempt", info.Attempt),
					zap.Int("total", info.Total),
					zap.Int("prev_status", info.PrevStatus),
				)
			}
		},
	})
	s.mark(context.WithoutCancel(ctx), requestID, OutcomeOf(res, err))

	return &TriggerResult{Delivery: res, Warnings: check.Warnings}, err
}

func (s *Service) clampAttempts(n int) int {
	if n < 1 {
		return s.attempts
	}
	return min(n, s.maxAttempts)
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("record activity failed", zap.String("request_id", e.RequestID), zap.Error(err))
	}
}

func (s *Service) mark(ctx context.Context, requestID string, o activity.Outcome) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Mark(ctx, requestID, o); err != nil {
		s.logger.Warn("mark activity failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

// OutcomeOf maps a delivery to the activity outcome it settles.
func OutcomeOf(res *SendResult, err error) activity.Outcome {
	o := activity.Outcome{Status: models.ActivityOK, Message: "delivered"}
	if res != nil {
		o.HTTPStatus = res.Status
		o.Attempts = res.Attempts
	}
	switch {
	case errors.Is(err, context.Canceled):
		o.Status = models.ActivityCancelled
		o.Message = "cancelled by user"
	case err != nil:
		o.Status = models.ActivityError
		o.Message = err.Error()
	case res == nil:
		o.Status = models.ActivityError
		o.Message = "no response"
	case !res.OK:
		o.Status = models.ActivityError
		o.Message = UpstreamMessage(res)
	}
	return o
}

// UpstreamMessage extracts a short human readable reason from a failed
// delivery.
func UpstreamMessage(res *SendResult) string {
	if obj, ok := res.Data.(map[string]any); ok {
		for _, key := range []string{"message", "error", "hint"} {
			if msg, ok := obj[key].(string); ok && strings.TrimSpace(msg) != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(res.RawText); text != "" && !strings.HasPrefix(text, "<") {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return fmt.Sprintf("workflow returned status %d", res.Status)
}

func assetCount(fields map[string]any) int {
	switch v := fields["images"].(type) {
	case []string:
		return len(v)
	case []any:
		return len(v)
	}
	switch n := fields["image_count"].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// ContractInfo describes one workflow for clients building forms.
type ContractInfo struct {
	Identifier Identifier `json:"identifier"`
	Contract   string     `json:"contract"`
	Path       string     `json:"path"`
	Operation  string     `json:"operation"`
	Required   []string   `json:"required"`
}

func (s *Service) Contracts() []ContractInfo {
	out := make([]ContractInfo, 0, len(contracts))
	for _, id := range Identifiers() {
		out = append(out, ContractInfo{
			Identifier: id,
			Contract:   id.Contract(),
			Path:       s.client.PathFor(id),
			Operation:  DefaultOperation(id),
			Required:   append([]string(nil), contracts[id].required...),
		})
	}
	return out
}
