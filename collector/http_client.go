package collector

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/pkg/errors"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const (
	defaultHttpTimeout = 15 * time.Second
	maxLoggedBodyBytes = 512
)

var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
}

// HttpStatusError is returned for any non-2xx response.
type HttpStatusError struct {
	StatusCode int
	Body       string
}

func (e *HttpStatusError) Error() string {
	return fmt.Sprintf("non-200 http code: %d", e.StatusCode)
}

type HttpClient struct {
	header     http.Header
	userAgents []string

	client *http.Client
}

// NewHttpClient sends header with every request. When userAgents is not empty
// each request picks one of them at random.
func NewHttpClient(header http.Header, userAgents []string) *HttpClient {
	return &HttpClient{
		header:     header,
		userAgents: userAgents,
		client:     &http.Client{Timeout: defaultHttpTimeout},
	}
}

// Get returns the full body of a 2xx response. A non-2xx response is returned
// as *HttpStatusError.
func (c *HttpClient) Get(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to build request for %s", uri)
	}
	req.Header = c.header.Clone()
	if len(c.userAgents) > 0 {
		req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to request %s", uri)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to read response body of %s", uri)
	}
	if IsNon200HttpResponse(res) {
		statusErr := &HttpStatusError{StatusCode: res.StatusCode, Body: string(body)}
		MaybeLogNon200HttpError(statusErr)
		return nil, statusErr
	}
	return body, nil
}

func IsNon200HttpResponse(res *http.Response) bool {
	return res.StatusCode < 200 || res.StatusCode >= 300
}

// Log http response if the error code is not 2XX
func MaybeLogNon200HttpError(err *HttpStatusError) {
	body := err.Body
	if len(body) > maxLoggedBodyBytes {
		body = body[:maxLoggedBodyBytes]
	}
	Logger.Log.Errorf("non-200 http code: %d, response body is: %s", err.StatusCode, body)
}
