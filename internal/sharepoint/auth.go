package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"spbackup/config"
)

// sharePointPrincipal is the well-known app id of SharePoint Online, used
// when the bearer challenge does not name one.
const sharePointPrincipal = "00000003-0000-0ff1-ce00-000000000000"

var (
	errNoRealm     = errors.New("no realm in authentication challenge")
	errInvalidSite = errors.New("invalid site")
)

// Authenticate acquires an app-only token for the site and returns a session
// that attaches it to every request. Sites with a tenant id authenticate
// against Azure AD; all others use the ACS realm discovered from the site.
func (c *Client) Authenticate(ctx context.Context, site config.Site) (*Session, error) {
	var (
		ts  oauth2.TokenSource
		err error
	)
	if site.TenantID != "" {
		ts, err = c.azureADTokenSource(ctx, site)
	} else {
		ts, err = c.acsTokenSource(ctx, site)
	}
	if err != nil {
		return nil, authError(site.SiteURL, err)
	}

	// Fetch eagerly so bad credentials surface here and not on the first listing.
	token, err := ts.Token()
	if err != nil {
		return nil, authError(site.SiteURL, err)
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(token, ts),
			Base:   c.httpClient.Transport,
		},
		Timeout: c.httpClient.Timeout,
	}
	return NewSession(site.SiteURL, httpClient), nil
}

// authError marks a refusal of the site's credentials as an authentication
// failure. Network errors and server faults are returned unchanged and go
// through the normal retry budget.
func authError(siteURL string, err error) error {
	if !credentialsRejected(err) {
		return err
	}
	return &AuthError{SiteURL: siteURL, Err: err}
}

// credentialsRejected reports whether the token endpoint or the site refused
// the credentials outright, or the site cannot issue a token at all.
func credentialsRejected(err error) bool {
	if errors.Is(err, errNoRealm) || errors.Is(err, errInvalidSite) {
		return true
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return rejectedStatus(re.Response.StatusCode)
	}
	var ae *azidentity.AuthenticationFailedError
	if errors.As(err, &ae) && ae.RawResponse != nil {
		return rejectedStatus(ae.RawResponse.StatusCode)
	}
	return false
}

func rejectedStatus(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusUnauthorized
}

func (c *Client) acsTokenSource(ctx context.Context, site config.Site) (oauth2.TokenSource, error) {
	u, err := url.Parse(site.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("%w url: %v", errInvalidSite, err)
	}

	realm, principal, err := c.discoverRealm(ctx, site.SiteURL)
	if err != nil {
		return nil, err
	}

	cc := &clientcredentials.Config{
		ClientID:     site.ClientID + "@" + realm,
		ClientSecret: site.ClientSecret,
		TokenURL:     c.authorityURL + "/" + realm + "/tokens/OAuth/2",
		EndpointParams: url.Values{
			"resource": {principal + "/" + u.Host + "@" + realm},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}

	// The token source refreshes after ctx is gone, so detach cancellation.
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, c.httpClient)
	return cc.TokenSource(tokenCtx), nil
}

// discoverRealm sends an empty bearer token to the site; SharePoint answers
// 401 with a challenge naming the tenant realm and its own principal id.
func (c *Client) discoverRealm(ctx context.Context, siteURL string) (realm, principal string, err error) {
	endpoint := strings.TrimRight(siteURL, "/") + "/_vti_bin/client.svc"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build realm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		return "", "", newStatusError(req, resp)
	}

	params := parseBearerChallenge(resp.Header.Get("WWW-Authenticate"))
	realm = params["realm"]
	if realm == "" {
		return "", "", fmt.Errorf("%w from %s", errNoRealm, siteURL)
	}
	principal = params["client_id"]
	if principal == "" {
		principal = sharePointPrincipal
	}
	return realm, principal, nil
}

// parseBearerChallenge parses `Bearer realm="x",client_id="y",...`.
func parseBearerChallenge(header string) map[string]string {
	params := make(map[string]string)
	header = strings.TrimSpace(header)
	if len(header) < 6 || !strings.EqualFold(header[:6], "bearer") {
		return params
	}
	for _, part := range strings.Split(header[6:], ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return params
}

func (c *Client) azureADTokenSource(ctx context.Context, site config.Site) (oauth2.TokenSource, error) {
	u, err := url.Parse(site.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("%w url: %v", errInvalidSite, err)
	}
	cred, err := c.newCredential(site.TenantID, site.ClientID, site.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("%w credential: %v", errInvalidSite, err)
	}
	return &credentialTokenSource{
		ctx:   context.WithoutCancel(ctx),
		cred:  cred,
		scope: u.Scheme + "://" + u.Host + "/.default",
	}, nil
}

// credentialTokenSource adapts an azcore credential to oauth2.
type credentialTokenSource struct {
	ctx   context.Context
	cred  azcore.TokenCredential
	scope string
}

func (s *credentialTokenSource) Token() (*oauth2.Token, error) {
	tk, err := s.cred.GetToken(s.ctx, policy.TokenRequestOptions{Scopes: []string{s.scope}})
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tk.Token,
		TokenType:   "Bearer",
		Expiry:      tk.ExpiresOn,
	}, nil
}
