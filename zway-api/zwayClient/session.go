package zwayClient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

// session is either unauthenticated or holds the cookies of a login.
type session interface {
	apply(req *http.Request)
}

type unauthenticated struct{}

func (unauthenticated) apply(*http.Request) {}

type authenticated struct {
	cookies []*http.Cookie
}

func (s authenticated) apply(req *http.Request) {
	for _, cookie := range s.cookies {
		req.AddCookie(cookie)
	}
}

// login posts the credentials to the ZAutomation login endpoint. Without
// credentials no request is made.
func (c *ZwayApiClient) login(username string, password string) (session, error) {
	if username == "" && password == "" {
		c.logger.Info("No credentials configured, skipping login")
		return unauthenticated{}, nil
	}

	payload, err := json.Marshal(zwayStructs.LoginRequest{
		Form:      true,
		Login:     username,
		Password:  password,
		KeepMe:    false,
		DefaultUI: 1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.loginUrl, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Logging in as ", username)
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Url: c.loginUrl, StatusCode: res.StatusCode}
	}

	cookies := res.Cookies()
	if len(cookies) == 0 {
		c.logger.Warn("Login succeeded without a session cookie")
	}
	return authenticated{cookies: cookies}, nil
}
