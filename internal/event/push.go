package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-github/v55/github"
)

// PushPayload captures the subset of GitHub push event data used by the action.
type PushPayload struct {
	Ref        string
	After      string
	Deleted    bool
	Repository Repository
	HeadCommit Commit
	Pusher     string
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// Commit describes the head commit of a push.
type Commit struct {
	SHA     string
	Message string
	URL     string
}

// Branch returns the short branch name of Ref, or "" for non-branch refs.
func (p PushPayload) Branch() string {
	name, ok := strings.CutPrefix(p.Ref, "refs/heads/")
	if !ok {
		return ""
	}
	return name
}

// SourceSHA returns the commit the push moved the ref to.
func (p PushPayload) SourceSHA() string {
	if p.HeadCommit.SHA != "" {
		return p.HeadCommit.SHA
	}
	return p.After
}

// ParsePushEvent decodes a GitHub push event payload from the provided reader.
func ParsePushEvent(r io.Reader) (PushPayload, error) {
	var raw github.PushEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return PushPayload{}, fmt.Errorf("decode push event: %w", err)
	}

	owner := raw.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		owner = raw.GetRepo().GetOwner().GetName()
	}

	payload := PushPayload{
		Ref:     strings.TrimSpace(raw.GetRef()),
		After:   strings.TrimSpace(raw.GetAfter()),
		Deleted: raw.GetDeleted(),
		Repository: Repository{
			Owner: strings.TrimSpace(owner),
			Name:  strings.TrimSpace(raw.GetRepo().GetName()),
		},
		Pusher: strings.TrimSpace(raw.GetPusher().GetName()),
	}

	if head := raw.GetHeadCommit(); head != nil {
		payload.HeadCommit = Commit{
			SHA:     strings.TrimSpace(head.GetID()),
			Message: head.GetMessage(),
			URL:     head.GetURL(),
		}
	}

	return payload, nil
}

// ParsePushEventFile reads the event JSON from disk.
func ParsePushEventFile(path string) (PushPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return PushPayload{}, fmt.Errorf("open event file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close event file: %v\n", closeErr)
		}
	}()

	return ParsePushEvent(f)
}
