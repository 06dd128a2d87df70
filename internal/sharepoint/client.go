package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	DefaultAuthorityURL = "https://accounts.accesscontrol.windows.net"

	acceptJSON   = "application/json;odata=nometadata"
	maxErrorBody = 512
)

// Client talks to the SharePoint REST API. The zero value is not usable;
// use New.
type Client struct {
	httpClient   *http.Client
	authorityURL string

	// newCredential builds the Azure AD credential for sites with a tenant id.
	newCredential func(tenantID, clientID, secret string) (azcore.TokenCredential, error)
}

func New(httpClient *http.Client, authorityURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if authorityURL == "" {
		authorityURL = DefaultAuthorityURL
	}
	return &Client{
		httpClient:    httpClient,
		authorityURL:  strings.TrimRight(authorityURL, "/"),
		newCredential: newClientSecretCredential,
	}
}

func newClientSecretCredential(tenantID, clientID, secret string) (azcore.TokenCredential, error) {
	return azidentity.NewClientSecretCredential(tenantID, clientID, secret, nil)
}

// GetFolder loads the folder at a server-relative path.
func (c *Client) GetFolder(ctx context.Context, s *Session, path string) (Folder, error) {
	var folder Folder
	err := c.getJSON(ctx, s, folderEndpoint(s, path, ""), &folder)
	return folder, err
}

func (c *Client) ListFiles(ctx context.Context, s *Session, folder Folder) ([]File, error) {
	var resp listResponse[File]
	if err := c.getJSON(ctx, s, folderEndpoint(s, folder.ServerRelativeURL, "/Files"), &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (c *Client) ListFolders(ctx context.Context, s *Session, folder Folder) ([]Folder, error) {
	var resp listResponse[Folder]
	if err := c.getJSON(ctx, s, folderEndpoint(s, folder.ServerRelativeURL, "/Folders"), &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// FetchFile downloads the full content of a file.
func (c *Client) FetchFile(ctx context.Context, s *Session, file File) ([]byte, error) {
	endpoint := s.SiteURL + "/_api/web/GetFileByServerRelativeUrl(@u)/$value?@u=" + quoteParam(file.ServerRelativeURL)
	resp, err := c.do(ctx, s, endpoint, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.ServerRelativeURL, err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, s *Session, endpoint string, out any) error {
	resp, err := c.do(ctx, s, endpoint, acceptJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, s *Session, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newStatusError(req, resp)
	}
	return resp, nil
}

func newStatusError(req *http.Request, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// folderEndpoint addresses a folder through a parameter alias so that
// quotes, ampersands and other reserved characters in names survive.
func folderEndpoint(s *Session, path, suffix string) string {
	return s.SiteURL + "/_api/web/GetFolderByServerRelativeUrl(@u)" + suffix + "?@u=" + quoteParam(path)
}

func quoteParam(value string) string {
	quoted := "'" + strings.ReplaceAll(value, "'", "''") + "'"
	return strings.ReplaceAll(url.QueryEscape(quoted), "+", "%20")
}
