package issuesync

import (
	"echo.app/relay/internal/model"
)

// defaultExternalState maps local statuses to the tracker's binary state.
// "open" and "rejected" are accepted for organizations whose workflow uses them.
var defaultExternalState = map[string]model.ExternalStatus{
	"new":         model.ExternalStatusOpen,
	"in-progress": model.ExternalStatusOpen,
	"planned":     model.ExternalStatusOpen,
	"open":        model.ExternalStatusOpen,
	"completed":   model.ExternalStatusClosed,
	"closed":      model.ExternalStatusClosed,
	"rejected":    model.ExternalStatusClosed,
}

// defaultLocalStatus maps the tracker's state back to a local status.
var defaultLocalStatus = map[model.ExternalStatus]model.FeedbackStatus{
	model.ExternalStatusOpen:   model.FeedbackStatusInProgress,
	model.ExternalStatusClosed: model.FeedbackStatusCompleted,
}

var defaultTypeLabels = map[model.FeedbackType]string{
	model.FeedbackTypeBug:         "bug",
	model.FeedbackTypeFeature:     "enhancement",
	model.FeedbackTypeImprovement: "improvement",
	model.FeedbackTypeQuestion:    "question",
	model.FeedbackTypeOther:       "feedback",
}

var defaultPriorityLabels = map[model.FeedbackPriority]string{
	model.FeedbackPriorityLow:    "priority: low",
	model.FeedbackPriorityMedium: "priority: medium",
	model.FeedbackPriorityHigh:   "priority: high",
	model.FeedbackPriorityUrgent: "priority: urgent",
}

// ExternalStateFor maps a local status to "open"/"closed". The organization's
// override wins when it names a valid state. ok is false for unknown statuses.
func ExternalStateFor(status model.FeedbackStatus, overrides model.StatusMapping) (model.ExternalStatus, bool) {
	if v, found := overrides[string(status)]; found {
		switch model.ExternalStatus(v) {
		case model.ExternalStatusOpen, model.ExternalStatusClosed:
			return model.ExternalStatus(v), true
		}
	}
	state, ok := defaultExternalState[string(status)]
	return state, ok
}

// LocalStatusFor maps the tracker's state back to a local status.
func LocalStatusFor(state model.ExternalStatus) (model.FeedbackStatus, bool) {
	status, ok := defaultLocalStatus[state]
	return status, ok
}

// LabelsFor returns the type label followed by the priority label. A custom
// mapping value wins; an empty custom value falls back to the default.
func LabelsFor(feedbackType model.FeedbackType, priority model.FeedbackPriority, mapping model.LabelMapping) []string {
	var labels []string
	if l := pick(mapping.Type[string(feedbackType)], defaultTypeLabels[feedbackType]); l != "" {
		labels = append(labels, l)
	}
	if l := pick(mapping.Priority[string(priority)], defaultPriorityLabels[priority]); l != "" {
		labels = append(labels, l)
	}
	return labels
}

func pick(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}
