package webhook

import (
	"github.com/invopop/jsonschema"

	"echo.app/relay/internal/model"
)

// EnvelopeSchema describes the body subscribers receive, with the data block
// of each event type under $defs.
func EnvelopeSchema() *jsonschema.Schema {
	envelope := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
	}
	reflector := jsonschema.Reflector{AllowAdditionalProperties: true}

	schema := envelope.Reflect(&model.Envelope{})
	schema.Title = "Echo webhook delivery"

	if schema.Definitions == nil {
		schema.Definitions = jsonschema.Definitions{}
	}
	data := map[string]any{
		model.EventFeedbackCreated:       &model.FeedbackEventData{},
		model.EventFeedbackSynced:        &model.FeedbackEventData{},
		model.EventFeedbackStatusChanged: &model.FeedbackStatusChangedData{},
		model.EventCommentCreated:        &model.CommentEventData{},
	}
	for eventType, v := range data {
		s := reflector.Reflect(v)
		for name, def := range s.Definitions {
			schema.Definitions[name] = def
		}
		schema.Definitions[eventType] = &jsonschema.Schema{Ref: s.Ref}
	}
	return schema
}
