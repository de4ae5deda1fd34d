package mapper

import (
	"context"
	"fmt"
	"strconv"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"echo.app/relay/internal/model"
)

const gitlabEventHeader = "X-Gitlab-Event"

type GitLabEventMapper struct{}

func NewGitLabEventMapper() *GitLabEventMapper {
	return &GitLabEventMapper{}
}

// Map handles Issue Hook (close, reopen, update) and Note Hook deliveries on
// issues. Notes on merge requests, commits and snippets are ignored.
func (m *GitLabEventMapper) Map(ctx context.Context, body []byte, headers map[string]string) (*Event, error) {
	eventType := gitlab.EventType(headers[gitlabEventHeader])
	switch eventType {
	case "":
		return nil, fmt.Errorf("missing %s header", gitlabEventHeader)
	case gitlab.EventTypeIssue, gitlab.EventTypeNote:
	default:
		return nil, ErrIgnored
	}

	parsed, err := gitlab.ParseWebhook(eventType, body)
	if err != nil {
		return nil, fmt.Errorf("decoding gitlab payload: %w", err)
	}

	switch ev := parsed.(type) {
	case *gitlab.IssueEvent:
		return mapGitLabIssue(ev)
	case *gitlab.IssueCommentEvent:
		return mapGitLabNote(ev)
	}
	return nil, ErrIgnored
}

func mapGitLabIssue(ev *gitlab.IssueEvent) (*Event, error) {
	event := &Event{
		IssueNumber: int64(ev.ObjectAttributes.IID),
		State:       gitlabState(ev.ObjectAttributes.State),
	}
	if ev.User != nil {
		event.Actor = ev.User.Username
	}

	switch ev.ObjectAttributes.Action {
	case "close":
		event.Type = EventIssueClosed
	case "reopen":
		event.Type = EventIssueReopened
	case "update":
		event.Type = EventIssueUpdated
	default:
		return nil, ErrIgnored
	}

	if event.IssueNumber == 0 {
		return nil, fmt.Errorf("gitlab issue event has no iid")
	}
	return event, nil
}

func mapGitLabNote(ev *gitlab.IssueCommentEvent) (*Event, error) {
	number := int64(ev.Issue.IID)
	if number == 0 {
		return nil, fmt.Errorf("gitlab note event has no issue iid")
	}

	author := ""
	if ev.User != nil {
		author = ev.User.Username
	}

	return &Event{
		Type:        EventCommentAdded,
		IssueNumber: number,
		State:       gitlabState(ev.Issue.State),
		Actor:       author,
		Comment: &Comment{
			ID:     strconv.FormatInt(int64(ev.ObjectAttributes.ID), 10),
			Author: author,
			Body:   ev.ObjectAttributes.Note,
			URL:    ev.ObjectAttributes.URL,
		},
	}, nil
}

func gitlabState(state string) model.ExternalStatus {
	switch state {
	case "opened", "reopened":
		return model.ExternalStatusOpen
	case "closed":
		return model.ExternalStatusClosed
	}
	return ""
}
