package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// StatusAccepted is the verdict the judge reports for a correct solution.
const StatusAccepted = "Accepted"

var (
	// ErrProblemNotFound indicates the catalog has no problem for the query.
	ErrProblemNotFound = errors.New("catalog problem not found")
	// ErrUserNotFound indicates the judge does not know the username.
	ErrUserNotFound = errors.New("catalog user not found")
	// ErrUnavailable indicates the catalog could not be reached or answered with garbage.
	ErrUnavailable = errors.New("catalog unavailable")
)

// Problem is the metadata of a catalog problem.
type Problem struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Difficulty string   `json:"difficulty"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
}

// Submission is a single judged submission of a user.
type Submission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Status      string    `json:"status"`
	Language    string    `json:"language"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Accepted reports whether the judge accepted the submission.
func (s Submission) Accepted() bool {
	return s.Status == StatusAccepted
}

// Client resolves problem metadata and recent submissions from the external judge.
type Client interface {
	LookupProblem(ctx context.Context, query string) (Problem, error)
	RecentSubmissions(ctx context.Context, username string, limit int) ([]Submission, error)
}

// NormalizeSlug turns a problem title, slug or problem URL into the catalog slug.
func NormalizeSlug(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	if parsed, err := url.Parse(query); err == nil && parsed.Host != "" {
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		for i, segment := range segments {
			if segment == "problems" && i+1 < len(segments) {
				return slug.Make(segments[i+1])
			}
		}
		if len(segments) > 0 {
			return slug.Make(segments[len(segments)-1])
		}
	}

	return slug.Make(query)
}
