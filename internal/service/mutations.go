package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheger-walk-admin/internal/events"
	"sheger-walk-admin/internal/features"
	"sheger-walk-admin/internal/logger"
	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/upstream"
	"sheger-walk-admin/internal/validation"
)

// Mutation is the result of a successful create, update or delete: the item
// the backend returned and the owning list re-read after it. A failed
// re-read does not undo the mutation and is reported in RefreshError.
type Mutation[T any] struct {
	Item         *T     `json:"item,omitempty"`
	List         []T    `json:"list"`
	RefreshError string `json:"refresh_error,omitempty"`
}

// resource describes a CRUD collection on the backend.
type resource[T any] struct {
	src     source
	itemKey string
	id      func(T) string
	created events.EventType
	updated events.EventType
	deleted events.EventType
}

var (
	challengeResource = resource[models.Challenge]{
		src:     srcChallenges,
		itemKey: "challenge",
		id:      func(c models.Challenge) string { return c.ID },
		created: events.EventChallengeCreated,
		updated: events.EventChallengeUpdated,
		deleted: events.EventChallengeDeleted,
	}
	providerResource = resource[models.ChallengeProvider]{
		src:     srcProviders,
		itemKey: "provider",
		id:      func(p models.ChallengeProvider) string { return p.ID },
		created: events.EventProviderCreated,
		updated: events.EventProviderUpdated,
		deleted: events.EventProviderDeleted,
	}
	rewardResource = resource[models.Reward]{
		src:     srcRewards,
		itemKey: "reward",
		id:      func(r models.Reward) string { return r.ID },
		created: events.EventRewardCreated,
		updated: events.EventRewardUpdated,
		deleted: events.EventRewardDeleted,
	}
	rewardTypeResource = resource[models.RewardType]{
		src:     srcRewardTypes,
		itemKey: "rewardType",
		id:      func(rt models.RewardType) string { return rt.ID },
		created: events.EventRewardTypeCreated,
		updated: events.EventRewardTypeUpdated,
		deleted: events.EventRewardTypeDeleted,
	}
)

// dispatch runs call and, only once it succeeded, publishes event, drops the
// cached owning list and re-reads it. A refused call publishes a
// failure event and returns the backend's message.
func dispatch[T any, L any](ctx context.Context, s *Service, src source, event events.EventType, targetID string,
	call func(ctx context.Context) upstream.Result[T], idOf func(T) string) (*T, []L, string, error) {
	ctx, span := s.tracer.StartSpan(ctx, "service.Mutate", trace.WithAttributes(
		attribute.String("mutation.event", string(event)),
		attribute.String("mutation.target_id", targetID),
	))
	defer span.End()

	res := call(ctx)
	if !res.OK {
		span.SetStatus(codes.Error, res.ErrorMessage)
		s.events.PublishFailure(ctx, event, targetID, res.ErrorMessage)
		return nil, nil, "", res.Err()
	}

	item := res.Value
	if targetID == "" && idOf != nil {
		targetID = idOf(item)
	}
	s.events.PublishMutation(ctx, event, targetID, "")

	if err := s.invalidate(ctx, src.resource); err != nil {
		logger.Warning("Invalidating %s after %s failed: %v", src.resource, event, err)
	}
	list, err := fetchAll[L](ctx, s, "", src, true)
	if err != nil {
		logger.Warning("Refreshing %s after %s failed: %v", src.resource, event, err)
		return &item, nil, err.Error(), nil
	}
	return &item, list, "", nil
}

func save[T any](ctx context.Context, s *Service, r resource[T], method, id string, body T, upload *upstream.FilePart) (Mutation[T], error) {
	path, event := r.src.path, r.created
	if method == http.MethodPut {
		path, event = r.src.path+"/"+id, r.updated
	}

	call := func(ctx context.Context) upstream.Result[T] {
		if upload == nil {
			return upstream.Send[T](ctx, s.client, method, path, r.itemKey, body)
		}
		fields, err := formFields(body)
		if err != nil {
			return upstream.Result[T]{ErrorMessage: err.Error()}
		}
		return upstream.SendMultipart[T](ctx, s.client, method, path, r.itemKey, upstream.Form{Fields: fields, File: upload})
	}

	item, list, refreshErr, err := dispatch[T, T](ctx, s, r.src, event, id, call, r.id)
	if err != nil {
		return Mutation[T]{}, err
	}
	return Mutation[T]{Item: item, List: emptyIfNil(list), RefreshError: refreshErr}, nil
}

func remove[T any](ctx context.Context, s *Service, r resource[T], id string, confirm bool) (Mutation[T], error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return Mutation[T]{}, err
	}
	if !confirm {
		return Mutation[T]{}, ErrConfirmationRequired
	}

	call := func(ctx context.Context) upstream.Result[json.RawMessage] {
		return upstream.Send[json.RawMessage](ctx, s.client, http.MethodDelete, r.src.path+"/"+id, "", nil)
	}

	_, list, refreshErr, err := dispatch[json.RawMessage, T](ctx, s, r.src, r.deleted, id, call, nil)
	if err != nil {
		return Mutation[T]{}, err
	}
	return Mutation[T]{List: emptyIfNil(list), RefreshError: refreshErr}, nil
}

func emptyIfNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

// formFields flattens a JSON-tagged struct into multipart fields. Nested
// objects and arrays are sent as JSON text.
func formFields(v any) (map[string]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	fields := make(map[string]string, len(raw))
	for name, value := range raw {
		switch {
		case string(value) == "null":
			continue
		case value[0] == '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, fmt.Errorf("failed to encode form field %s: %w", name, err)
			}
			if s == "" {
				continue
			}
			fields[name] = s
		default:
			fields[name] = string(value)
		}
	}
	return fields, nil
}

func (s *Service) checkUpload(field string, upload *upstream.FilePart, maxBytes int64) error {
	if upload == nil {
		return nil
	}
	upload.Field = field
	return validation.ValidateImage(field, upload.ContentType, int64(len(upload.Data)), maxBytes)
}

// CreateChallenge validates c and creates it. image is optional.
func (s *Service) CreateChallenge(ctx context.Context, c models.Challenge, image *upstream.FilePart) (Mutation[models.Challenge], error) {
	if err := validation.ValidateChallenge(c); err != nil {
		return Mutation[models.Challenge]{}, err
	}
	if err := s.checkUpload("image", image, s.limits.ChallengeImage); err != nil {
		return Mutation[models.Challenge]{}, err
	}
	return save(ctx, s, challengeResource, http.MethodPost, "", c, image)
}

// UpdateChallenge validates c and replaces challenge id.
func (s *Service) UpdateChallenge(ctx context.Context, id string, c models.Challenge, image *upstream.FilePart) (Mutation[models.Challenge], error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return Mutation[models.Challenge]{}, err
	}
	if err := validation.ValidateChallenge(c); err != nil {
		return Mutation[models.Challenge]{}, err
	}
	if err := s.checkUpload("image", image, s.limits.ChallengeImage); err != nil {
		return Mutation[models.Challenge]{}, err
	}
	return save(ctx, s, challengeResource, http.MethodPut, id, c, image)
}

// DeleteChallenge removes challenge id. confirm must be true.
func (s *Service) DeleteChallenge(ctx context.Context, id string, confirm bool) (Mutation[models.Challenge], error) {
	return remove(ctx, s, challengeResource, id, confirm)
}

// CreateProvider validates p and creates it. logo is optional.
func (s *Service) CreateProvider(ctx context.Context, p models.ChallengeProvider, logo *upstream.FilePart) (Mutation[models.ChallengeProvider], error) {
	if err := validation.ValidateProvider(p); err != nil {
		return Mutation[models.ChallengeProvider]{}, err
	}
	if err := s.checkUpload("logo", logo, s.limits.ProviderLogo); err != nil {
		return Mutation[models.ChallengeProvider]{}, err
	}
	return save(ctx, s, providerResource, http.MethodPost, "", p, logo)
}

func (s *Service) UpdateProvider(ctx context.Context, id string, p models.ChallengeProvider, logo *upstream.FilePart) (Mutation[models.ChallengeProvider], error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return Mutation[models.ChallengeProvider]{}, err
	}
	if err := validation.ValidateProvider(p); err != nil {
		return Mutation[models.ChallengeProvider]{}, err
	}
	if err := s.checkUpload("logo", logo, s.limits.ProviderLogo); err != nil {
		return Mutation[models.ChallengeProvider]{}, err
	}
	return save(ctx, s, providerResource, http.MethodPut, id, p, logo)
}

func (s *Service) DeleteProvider(ctx context.Context, id string, confirm bool) (Mutation[models.ChallengeProvider], error) {
	return remove(ctx, s, providerResource, id, confirm)
}

func (s *Service) CreateReward(ctx context.Context, r models.Reward) (Mutation[models.Reward], error) {
	if err := validation.ValidateReward(r); err != nil {
		return Mutation[models.Reward]{}, err
	}
	return save(ctx, s, rewardResource, http.MethodPost, "", r, nil)
}

func (s *Service) UpdateReward(ctx context.Context, id string, r models.Reward) (Mutation[models.Reward], error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return Mutation[models.Reward]{}, err
	}
	if err := validation.ValidateReward(r); err != nil {
		return Mutation[models.Reward]{}, err
	}
	return save(ctx, s, rewardResource, http.MethodPut, id, r, nil)
}

func (s *Service) DeleteReward(ctx context.Context, id string, confirm bool) (Mutation[models.Reward], error) {
	return remove(ctx, s, rewardResource, id, confirm)
}

func (s *Service) CreateRewardType(ctx context.Context, rt models.RewardType) (Mutation[models.RewardType], error) {
	if err := validation.ValidateRewardType(rt); err != nil {
		return Mutation[models.RewardType]{}, err
	}
	return save(ctx, s, rewardTypeResource, http.MethodPost, "", rt, nil)
}

func (s *Service) UpdateRewardType(ctx context.Context, id string, rt models.RewardType) (Mutation[models.RewardType], error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return Mutation[models.RewardType]{}, err
	}
	if err := validation.ValidateRewardType(rt); err != nil {
		return Mutation[models.RewardType]{}, err
	}
	return save(ctx, s, rewardTypeResource, http.MethodPut, id, rt, nil)
}

func (s *Service) DeleteRewardType(ctx context.Context, id string, confirm bool) (Mutation[models.RewardType], error) {
	return remove(ctx, s, rewardTypeResource, id, confirm)
}

// ApproveWithdrawal approves a pending withdrawal.
func (s *Service) ApproveWithdrawal(ctx context.Context, id string) (Mutation[models.Withdrawal], error) {
	return s.reviewWithdrawal(ctx, id, "approve", events.EventWithdrawalApproved, nil)
}

// RejectWithdrawal rejects a pending withdrawal. A reason is required.
func (s *Service) RejectWithdrawal(ctx context.Context, id, reason string) (Mutation[models.Withdrawal], error) {
	if err := validation.ValidateRejection(reason); err != nil {
		return Mutation[models.Withdrawal]{}, err
	}
	body := map[string]string{"reason": validation.SanitizeString(reason)}
	return s.reviewWithdrawal(ctx, id, "reject", events.EventWithdrawalRejected, body)
}

func (s *Service) reviewWithdrawal(ctx context.Context, id, action string, event events.EventType, body any) (Mutation[models.Withdrawal], error) {
	if !s.features.IsEnabled(features.FeatureWithdrawalReview) {
		return Mutation[models.Withdrawal]{}, ErrFeatureDisabled
	}
	if err := validation.ValidateID(id, "id"); err != nil {
		return Mutation[models.Withdrawal]{}, err
	}

	path := srcWithdrawals.path + "/" + id + "/" + action
	call := func(ctx context.Context) upstream.Result[models.Withdrawal] {
		return upstream.Send[models.Withdrawal](ctx, s.client, http.MethodPut, path, "withdrawal", body)
	}

	item, list, refreshErr, err := dispatch[models.Withdrawal, models.Withdrawal](ctx, s, srcWithdrawals, event, id, call, nil)
	if err != nil {
		return Mutation[models.Withdrawal]{}, err
	}
	return Mutation[models.Withdrawal]{Item: item, List: emptyIfNil(list), RefreshError: refreshErr}, nil
}

// ParseConfirm reads a confirm query value. Only an explicit true confirms.
func ParseConfirm(v string) bool {
	ok, err := strconv.ParseBool(v)
	return err == nil && ok
}
