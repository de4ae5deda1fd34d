package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"echo.app/relay/internal/model"
)

const githubEventHeader = "X-Github-Event"

type GitHubEventMapper struct{}

func NewGitHubEventMapper() *GitHubEventMapper {
	return &GitHubEventMapper{}
}

type githubUser struct {
	Login string `json:"login"`
}

type githubIssuePayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number      int64           `json:"number"`
		State       string          `json:"state"`
		PullRequest json.RawMessage `json:"pull_request"`
	} `json:"issue"`
	Comment *struct {
		ID      int64      `json:"id"`
		HTMLURL string     `json:"html_url"`
		Body    string     `json:"body"`
		User    githubUser `json:"user"`
	} `json:"comment"`
	Sender githubUser `json:"sender"`
}

// Map handles "issues" (closed, reopened, edited) and "issue_comment"
// (created) deliveries. Pull request activity is ignored.
func (m *GitHubEventMapper) Map(ctx context.Context, body []byte, headers map[string]string) (*Event, error) {
	eventName := headers[githubEventHeader]
	switch eventName {
	case "":
		return nil, fmt.Errorf("missing %s header", githubEventHeader)
	case "issues", "issue_comment":
	default:
		return nil, ErrIgnored
	}

	var payload githubIssuePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding github payload: %w", err)
	}
	if len(payload.Issue.PullRequest) > 0 && string(payload.Issue.PullRequest) != "null" {
		return nil, ErrIgnored
	}
	if payload.Issue.Number == 0 {
		return nil, fmt.Errorf("github %s payload has no issue number", eventName)
	}

	event := &Event{
		IssueNumber: payload.Issue.Number,
		State:       githubState(payload.Issue.State),
		Actor:       payload.Sender.Login,
	}

	switch eventName {
	case "issues":
		switch payload.Action {
		case "closed":
			event.Type = EventIssueClosed
		case "reopened":
			event.Type = EventIssueReopened
		case "edited":
			event.Type = EventIssueUpdated
		default:
			return nil, ErrIgnored
		}
	case "issue_comment":
		if payload.Action != "created" || payload.Comment == nil {
			return nil, ErrIgnored
		}
		event.Type = EventCommentAdded
		event.Comment = &Comment{
			ID:     strconv.FormatInt(payload.Comment.ID, 10),
			Author: payload.Comment.User.Login,
			Body:   payload.Comment.Body,
			URL:    payload.Comment.HTMLURL,
		}
	}

	return event, nil
}

func githubState(state string) model.ExternalStatus {
	switch state {
	case "open":
		return model.ExternalStatusOpen
	case "closed":
		return model.ExternalStatusClosed
	}
	return ""
}
