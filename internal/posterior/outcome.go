package posterior

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/mabquiz/internal/arm"
)

var outcomeValidate *validator.Validate

func init() {
	outcomeValidate = validator.New()
	// Report json field names so errors match what API callers sent.
	outcomeValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = outcomeValidate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Outcome is one answered question. TopicKey wins over Topic when both are
// set; one of them is required.
type Outcome struct {
	LearnerID      string        `json:"learnerId" validate:"notblank"`
	QuestionID     string        `json:"questionId" validate:"notblank"`
	TopicKey       string        `json:"topicKey,omitempty"`
	Topic          *arm.TopicRef `json:"topic,omitempty"`
	Correct        bool          `json:"correct"`
	ResponseTimeMs int64         `json:"responseTimeMs" validate:"gte=0"`
	// Confidence is the learner's self-report. Values outside [0,1] are clamped.
	Confidence float64 `json:"confidence"`
}

// ResolvedTopicKey returns the topic key the outcome applies to.
func (o Outcome) ResolvedTopicKey() string {
	if k := strings.TrimSpace(o.TopicKey); k != "" {
		return k
	}
	if o.Topic != nil && !o.Topic.IsZero() {
		return o.Topic.Key()
	}
	return ""
}

// Validate returns an *arm.ErrInvalidOutcome describing the first problem.
func (o Outcome) Validate() error {
	if err := outcomeValidate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &arm.ErrInvalidOutcome{Field: fe.Field(), Reason: reasonFor(fe)}
		}
		return &arm.ErrInvalidOutcome{Field: "outcome", Reason: err.Error()}
	}
	if o.ResolvedTopicKey() == "" {
		return &arm.ErrInvalidOutcome{Field: "topicKey", Reason: "is required"}
	}
	if math.IsNaN(o.Confidence) {
		return &arm.ErrInvalidOutcome{Field: "confidence", Reason: "is not a number"}
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
