// Package ghapi reads repositories, contributors, issues, pull requests and
// organization events from the GitHub REST API.
//
// Every call fans out across the configured organizations and their
// repositories. A failing organization or repository is logged and left out
// of the result.
package ghapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"squadbot/internal/model"
)

const (
	perPage     = 100
	maxParallel = 8
)

// Client is a GitHub API client scoped to a set of organizations.
type Client struct {
	gh   *github.Client
	orgs []string
	log  *slog.Logger
}

// New returns a Client using httpClient. A nil httpClient uses http.DefaultClient.
func New(httpClient *http.Client, orgs []string, log *slog.Logger) *Client {
	return &Client{
		gh:   github.NewClient(httpClient),
		orgs: orgs,
		log:  log,
	}
}

// NewWithToken returns a Client authenticated with a personal access token.
// An empty token yields an anonymous client.
func NewWithToken(ctx context.Context, token string, orgs []string, log *slog.Logger) *Client {
	if token == "" {
		return New(nil, orgs, log)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return New(oauth2.NewClient(ctx, ts), orgs, log)
}

// SetBaseURL points the client at a different API root.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	c.gh.BaseURL = u
	return nil
}

type repoRef struct {
	owner string
	name  string
}

func (r repoRef) String() string {
	return r.owner + "/" + r.name
}

// Contributors returns the contributors of every repository, deduplicated by
// login in first-seen order.
func (c *Client) Contributors(ctx context.Context) ([]model.Contributor, error) {
	perRepo, err := forEachRepo(ctx, c, "list contributors", func(ctx context.Context, r repoRef) ([]model.Contributor, error) {
		list, err := paginate(ctx, func(opts github.ListOptions) ([]*github.Contributor, *github.Response, error) {
			return c.gh.Repositories.ListContributors(ctx, r.owner, r.name, &github.ListContributorsOptions{ListOptions: opts})
		})
		if err != nil {
			return nil, err
		}
		out := make([]model.Contributor, 0, len(list))
		for _, ct := range list {
			out = append(out, model.Contributor{Login: ct.GetLogin()})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []model.Contributor
	for _, ct := range perRepo {
		if ct.Login == "" || seen[ct.Login] {
			continue
		}
		seen[ct.Login] = true
		out = append(out, ct)
	}
	return out, nil
}

// OpenIssues returns the open issues of every repository. Pull requests are
// not included.
func (c *Client) OpenIssues(ctx context.Context) ([]model.Item, error) {
	return forEachRepo(ctx, c, "list issues", func(ctx context.Context, r repoRef) ([]model.Item, error) {
		list, err := paginate(ctx, func(opts github.ListOptions) ([]*github.Issue, *github.Response, error) {
			return c.gh.Issues.ListByRepo(ctx, r.owner, r.name, &github.IssueListByRepoOptions{State: "open", ListOptions: opts})
		})
		if err != nil {
			return nil, err
		}
		var out []model.Item
		for _, is := range list {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, model.Item{Title: is.GetTitle(), URL: is.GetHTMLURL()})
		}
		return out, nil
	})
}

// PullRequests returns the open pull requests of every repository.
func (c *Client) PullRequests(ctx context.Context) ([]model.Item, error) {
	return forEachRepo(ctx, c, "list pull requests", func(ctx context.Context, r repoRef) ([]model.Item, error) {
		list, err := paginate(ctx, func(opts github.ListOptions) ([]*github.PullRequest, *github.Response, error) {
			return c.gh.PullRequests.List(ctx, r.owner, r.name, &github.PullRequestListOptions{State: "open", ListOptions: opts})
		})
		if err != nil {
			return nil, err
		}
		out := make([]model.Item, 0, len(list))
		for _, pr := range list {
			out = append(out, model.Item{Title: pr.GetTitle(), URL: pr.GetHTMLURL()})
		}
		return out, nil
	})
}

// Events returns the most recent public events of every organization.
// Event types other than issues, pull requests and issue comments are dropped.
func (c *Client) Events(ctx context.Context) ([]model.RepoEvent, error) {
	return forEachOrg(ctx, c, "list events", func(ctx context.Context, org string) ([]model.RepoEvent, error) {
		events, _, err := c.gh.Activity.ListEventsForOrganization(ctx, org, &github.ListOptions{PerPage: perPage})
		if err != nil {
			return nil, err
		}
		var out []model.RepoEvent
		for _, e := range events {
			ev, ok := convertEvent(e)
			if !ok {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	})
}

func (c *Client) repos(ctx context.Context) ([]repoRef, error) {
	return forEachOrg(ctx, c, "list repositories", func(ctx context.Context, org string) ([]repoRef, error) {
		list, err := paginate(ctx, func(opts github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return c.gh.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{ListOptions: opts})
		})
		if err != nil {
			return nil, err
		}
		out := make([]repoRef, 0, len(list))
		for _, r := range list {
			out = append(out, repoRef{owner: r.GetOwner().GetLogin(), name: r.GetName()})
		}
		return out, nil
	})
}

func forEachOrg[T any](ctx context.Context, c *Client, op string, fetch func(context.Context, string) ([]T, error)) ([]T, error) {
	return fanOut(ctx, c.log, op, "org", c.orgs, func(o string) string { return o }, fetch)
}

func forEachRepo[T any](ctx context.Context, c *Client, op string, fetch func(context.Context, repoRef) ([]T, error)) ([]T, error) {
	repos, err := c.repos(ctx)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, c.log, op, "repo", repos, repoRef.String, fetch)
}

// fanOut runs fetch for every key with bounded parallelism and concatenates
// the results in key order. Failed keys are logged and skipped; only
// cancellation of ctx is returned as an error.
func fanOut[K, T any](
	ctx context.Context,
	log *slog.Logger,
	op, attr string,
	keys []K,
	name func(K) string,
	fetch func(context.Context, K) ([]T, error),
) ([]T, error) {
	results := make([][]T, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, k := range keys {
		g.Go(func() error {
			res, err := fetch(gctx, k)
			if err != nil {
				log.Error(op, attr, name(k), "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []T
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func paginate[T any](ctx context.Context, fetch func(github.ListOptions) ([]T, *github.Response, error)) ([]T, error) {
	opts := github.ListOptions{PerPage: perPage}
	var all []T
	for {
		page, resp, err := fetch(opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 || ctx.Err() != nil {
			return all, ctx.Err()
		}
		opts.Page = resp.NextPage
	}
}

func convertEvent(e *github.Event) (model.RepoEvent, bool) {
	ev := model.RepoEvent{
		Type:  model.EventType(e.GetType()),
		Repo:  e.GetRepo().GetName(),
		Actor: e.GetActor().GetLogin(),
	}
	switch ev.Type {
	case model.EventIssues, model.EventPullRequest, model.EventIssueComment:
	default:
		return model.RepoEvent{}, false
	}

	payload, err := e.ParsePayload()
	if err != nil {
		return model.RepoEvent{}, false
	}
	switch p := payload.(type) {
	case *github.IssuesEvent:
		ev.Subject = issueSubject(p.GetIssue())
	case *github.IssueCommentEvent:
		ev.Subject = issueSubject(p.GetIssue())
	case *github.PullRequestEvent:
		pr := p.GetPullRequest()
		ev.Subject = &model.Subject{
			URL:         pr.GetHTMLURL(),
			Title:       pr.GetTitle(),
			CreatedAt:   pr.GetCreatedAt().Time,
			UpdatedAt:   pr.GetUpdatedAt().Time,
			PullRequest: true,
		}
	}
	if ev.Subject == nil {
		return model.RepoEvent{}, false
	}
	return ev, true
}

func issueSubject(is *github.Issue) *model.Subject {
	if is == nil {
		return nil
	}
	return &model.Subject{
		URL:         is.GetHTMLURL(),
		Title:       is.GetTitle(),
		CreatedAt:   is.GetCreatedAt().Time,
		UpdatedAt:   is.GetUpdatedAt().Time,
		PullRequest: is.IsPullRequest(),
	}
}
