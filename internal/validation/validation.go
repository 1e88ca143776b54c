package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"sheger-walk-admin/internal/models"
)

var (
	idRegex    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,19}$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func ValidateChallenge(c models.Challenge) error {
	if SanitizeString(c.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}

	if c.JoiningCost < 0 {
		return &ValidationError{
			Field:   "joiningCost",
			Message: "must be non-negative",
		}
	}

	if c.StepsRequired < 0 {
		return &ValidationError{
			Field:   "stepsRequired",
			Message: "must be non-negative",
		}
	}

	if c.MinParticipants < 1 {
		return &ValidationError{
			Field:   "minParticipants",
			Message: "must be at least 1",
		}
	}

	if c.Reward.Value < 0 {
		return &ValidationError{
			Field:   "reward.value",
			Message: "must be non-negative",
		}
	}

	if c.StartDate.IsZero() {
		return &ValidationError{
			Field:   "startDate",
			Message: "is required",
		}
	}

	if c.EndDate.IsZero() {
		return &ValidationError{
			Field:   "endDate",
			Message: "is required",
		}
	}

	if !c.EndDate.After(c.StartDate) {
		return &ValidationError{
			Field:   "endDate",
			Message: "must be after start date",
		}
	}

	if c.ExpiryDate != nil && c.ExpiryDate.Before(c.EndDate) {
		return &ValidationError{
			Field:   "expiryDate",
			Message: "must be on or after end date",
		}
	}

	return nil
}

func ValidateProvider(p models.ChallengeProvider) error {
	if SanitizeString(p.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}

	if phone := SanitizeString(p.Phone); phone != "" && !phoneRegex.MatchString(phone) {
		return &ValidationError{
			Field:   "phone",
			Message: "must be a valid phone number",
		}
	}

	return nil
}

func ValidateReward(r models.Reward) error {
	if SanitizeString(r.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}

	if r.Value <= 0 {
		return &ValidationError{
			Field:   "value",
			Message: "must be greater than zero",
		}
	}

	if SanitizeString(r.Type) == "" {
		return &ValidationError{
			Field:   "type",
			Message: "is required",
		}
	}

	return nil
}

func ValidateRewardType(rt models.RewardType) error {
	if SanitizeString(rt.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}
	return nil
}

// ValidateRejection requires a reason for rejecting a withdrawal.
func ValidateRejection(reason string) error {
	if SanitizeString(reason) == "" {
		return &ValidationError{
			Field:   "reason",
			Message: "is required",
		}
	}
	return nil
}

// ValidateImage checks an uploaded file before it is forwarded upstream.
func ValidateImage(field, contentType string, size, maxBytes int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return &ValidationError{
			Field:   field,
			Message: "must be an image",
		}
	}

	if size <= 0 {
		return &ValidationError{
			Field:   field,
			Message: "is empty",
		}
	}

	if maxBytes > 0 && size > maxBytes {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("cannot exceed %dMB", maxBytes>>20),
		}
	}

	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateID checks an identifier taken from a URL before it is spliced into
// an upstream path.
func ValidateID(id, fieldName string) error {
	id = SanitizeString(id)
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	if !idRegex.MatchString(id) {
		return &ValidationError{
			Field:   fieldName,
			Message: "contains invalid characters",
		}
	}

	return nil
}
