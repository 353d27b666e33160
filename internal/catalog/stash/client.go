// Package stash implements the catalog service against a Stash server's
// GraphQL endpoint.
package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
)

// Client talks to one Stash server.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ catalog.Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "stash")
	}
}

// New creates a client for the GraphQL endpoint. apiKey may be empty when the
// server does not require authentication.
func New(endpoint, apiKey string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("stash graphql url required")
	}
	client := &Client{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// GraphQLError reports errors returned in a GraphQL response body.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// call executes one GraphQL operation and decodes its data into out.
func (c *Client) call(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return catalog.Wrap(op, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return catalog.Wrap(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("ApiKey", c.apiKey)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return catalog.Wrap(op, fmt.Errorf("execute request (latency=%v): %w", latency, err))
	}
	defer resp.Body.Close()

	c.logger.Debug("graphql request",
		logging.String("operation", op),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return catalog.Wrap(op, fmt.Errorf("stash returned %d (latency=%v): %s", resp.StatusCode, latency, strings.TrimSpace(string(snippet))))
	}

	var payload graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return catalog.Wrap(op, fmt.Errorf("decode response: %w", err))
	}
	if len(payload.Errors) > 0 {
		messages := make([]string, len(payload.Errors))
		for i, e := range payload.Errors {
			messages[i] = e.Message
		}
		return catalog.Wrap(op, &GraphQLError{Messages: messages})
	}
	if out == nil {
		return nil
	}
	if len(payload.Data) == 0 || string(payload.Data) == "null" {
		return catalog.Wrap(op, errors.New("response carried no data"))
	}
	if err := json.Unmarshal(payload.Data, out); err != nil {
		return catalog.Wrap(op, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// allPages requests every result in one page.
var allPages = map[string]any{"per_page": -1}

func (c *Client) FindDuplicateGroups(ctx context.Context, distance catalog.Distance) ([][]catalog.RawScene, error) {
	var data struct {
		FindDuplicateScenes [][]catalog.RawScene `json:"findDuplicateScenes"`
	}
	vars := map[string]any{"distance": int(distance)}
	if err := c.call(ctx, "findDuplicateScenes", findDuplicateScenesQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.FindDuplicateScenes, nil
}

func (c *Client) FindScenes(ctx context.Context, filter catalog.SceneFilter) ([]catalog.RawScene, error) {
	var data struct {
		FindScenes struct {
			Count  int                `json:"count"`
			Scenes []catalog.RawScene `json:"scenes"`
		} `json:"findScenes"`
	}
	vars := map[string]any{
		"filter":       allPages,
		"scene_filter": sceneFilterInput(filter),
	}
	if err := c.call(ctx, "findScenes", findScenesQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.FindScenes.Scenes, nil
}

func sceneFilterInput(filter catalog.SceneFilter) map[string]any {
	input := map[string]any{}
	if filter.TitleRegex != "" {
		input["title"] = map[string]any{"value": filter.TitleRegex, "modifier": "MATCHES_REGEX"}
	}
	if len(filter.TagIDs) > 0 || len(filter.ExcludeTagIDs) > 0 {
		tags := map[string]any{"depth": 0}
		if len(filter.TagIDs) > 0 {
			tags["value"] = filter.TagIDs
			tags["modifier"] = "INCLUDES"
		} else {
			tags["value"] = []string{}
			tags["modifier"] = "INCLUDES_ALL"
		}
		if len(filter.ExcludeTagIDs) > 0 {
			tags["excludes"] = filter.ExcludeTagIDs
		}
		input["tags"] = tags
	}
	if filter.Oshash != "" {
		input["oshash"] = map[string]any{"value": filter.Oshash, "modifier": "EQUALS"}
	}
	if filter.MinFileCount > 0 {
		input["file_count"] = map[string]any{"value": filter.MinFileCount, "modifier": "GREATER_THAN"}
	}
	if filter.Path != "" {
		input["path"] = map[string]any{"value": filter.Path, "modifier": "EQUALS"}
	}
	return input
}

func (c *Client) UpdateScenes(ctx context.Context, update catalog.SceneUpdate) error {
	if len(update.IDs) == 0 {
		return nil
	}
	input := map[string]any{"ids": update.IDs}
	if update.Title != nil {
		input["title"] = *update.Title
	}
	if update.Tags != nil {
		input["tag_ids"] = map[string]any{"mode": string(update.Tags.Mode), "ids": update.Tags.TagIDs}
	}
	return c.call(ctx, "bulkSceneUpdate", bulkSceneUpdateMutation, map[string]any{"input": input}, nil)
}

func (c *Client) findTags(ctx context.Context, value, modifier string) ([]catalog.Tag, error) {
	var data struct {
		FindTags struct {
			Tags []catalog.Tag `json:"tags"`
		} `json:"findTags"`
	}
	vars := map[string]any{
		"filter":     allPages,
		"tag_filter": map[string]any{"name": map[string]any{"value": value, "modifier": modifier}},
	}
	if err := c.call(ctx, "findTags", findTagsQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.FindTags.Tags, nil
}

// FindTag looks a tag up by exact name, ignoring case.
func (c *Client) FindTag(ctx context.Context, name string) (catalog.Tag, bool, error) {
	tags, err := c.findTags(ctx, name, "EQUALS")
	if err != nil {
		return catalog.Tag{}, false, err
	}
	for _, tag := range tags {
		if tag.Name == name {
			return tag, true, nil
		}
	}
	for _, tag := range tags {
		if strings.EqualFold(tag.Name, name) {
			return tag, true, nil
		}
	}
	return catalog.Tag{}, false, nil
}

func (c *Client) FindTags(ctx context.Context, nameRegex string) ([]catalog.Tag, error) {
	return c.findTags(ctx, nameRegex, "MATCHES_REGEX")
}

func (c *Client) FindOrCreateTag(ctx context.Context, name string) (string, error) {
	tag, found, err := c.FindTag(ctx, name)
	if err != nil {
		return "", err
	}
	if found {
		return tag.ID, nil
	}
	var data struct {
		TagCreate catalog.Tag `json:"tagCreate"`
	}
	vars := map[string]any{"input": map[string]any{"name": name}}
	if err := c.call(ctx, "tagCreate", tagCreateMutation, vars, &data); err != nil {
		return "", err
	}
	if data.TagCreate.ID == "" {
		return "", catalog.Wrap("tagCreate", fmt.Errorf("no id returned for tag %q", name))
	}
	c.logger.Info("tag created", logging.String("tag", name), logging.String("tag_id", data.TagCreate.ID))
	return data.TagCreate.ID, nil
}

func (c *Client) DestroyTag(ctx context.Context, id string) error {
	return c.call(ctx, "tagDestroy", tagDestroyMutation, map[string]any{"input": map[string]any{"id": id}}, nil)
}

func (c *Client) CreateScene(ctx context.Context, title string, fileIDs []string) (string, error) {
	var data struct {
		SceneCreate catalog.Ref `json:"sceneCreate"`
	}
	vars := map[string]any{"input": map[string]any{"title": title, "file_ids": fileIDs}}
	if err := c.call(ctx, "sceneCreate", sceneCreateMutation, vars, &data); err != nil {
		return "", err
	}
	if data.SceneCreate.ID == "" {
		return "", catalog.Wrap("sceneCreate", errors.New("no scene id returned"))
	}
	return data.SceneCreate.ID, nil
}

func (c *Client) RawQuery(ctx context.Context, sql string) ([][]any, error) {
	var data struct {
		QuerySQL struct {
			Columns []string `json:"columns"`
			Rows    [][]any  `json:"rows"`
		} `json:"querySQL"`
	}
	if err := c.call(ctx, "querySQL", querySQLQuery, map[string]any{"sql": sql}, &data); err != nil {
		return nil, err
	}
	return data.QuerySQL.Rows, nil
}
