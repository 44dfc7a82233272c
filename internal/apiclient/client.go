// Package apiclient talks to the CodeX HTTP API on behalf of a workspace
// that has no direct database access.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/http/dto"
	"github.com/Minhal128/CodeX/internal/model"
)

// ErrNotFound is returned when the server has no such project.
var ErrNotFound = errors.New("not found")

type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8080". A nil httpClient gets a 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	response, err := c.do(ctx, http.MethodGet, projectPath(projectID), nil)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	defer response.Body.Close()

	if err := checkStatus(response, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	var envelope dto.ProjectEnvelope
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("get project %s: decoding response: %w", projectID, err)
	}
	if envelope.Project == nil {
		return nil, fmt.Errorf("get project %s: response has no project", projectID)
	}

	p := envelope.Project
	users := make([]model.User, 0, len(p.Users))
	for _, u := range p.Users {
		users = append(users, model.User{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Email:       u.Email,
			CreatedAt:   u.CreatedAt,
			UpdatedAt:   u.UpdatedAt,
		})
	}
	return &model.Project{
		ID:        p.ID,
		Name:      p.Name,
		Users:     users,
		FileTree:  p.FileTree,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func (c *Client) SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error {
	if tree == nil {
		tree = filetree.Tree{}
	}
	body, err := json.Marshal(dto.SaveFileTreeRequest{ProjectID: projectID, FileTree: &tree})
	if err != nil {
		return fmt.Errorf("save file tree: encoding request: %w", err)
	}

	response, err := c.do(ctx, http.MethodPut, projectPath(projectID)+"/file-tree", body)
	if err != nil {
		return fmt.Errorf("save file tree: %w", err)
	}
	defer response.Body.Close()

	if err := checkStatus(response, http.StatusNoContent, http.StatusOK); err != nil {
		return fmt.Errorf("save file tree %s: %w", projectID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(request)
}

func projectPath(projectID string) string {
	return "/api/v1/projects/" + url.PathEscape(projectID)
}

func checkStatus(response *http.Response, accepted ...int) error {
	for _, code := range accepted {
		if response.StatusCode == code {
			return nil
		}
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	message := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	if response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	}
	return fmt.Errorf("HTTP %d: %s", response.StatusCode, message)
}
