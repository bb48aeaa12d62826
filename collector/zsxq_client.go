package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Luismorlan/zsxqintel/collector/file_store"
	"github.com/Luismorlan/zsxqintel/model"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const DefaultCountPerRequest = 20

// ErrCredentialExpired means the cookie was rejected. It is kept apart from
// transport failures so callers can tell "nothing new" from "logged out".
var ErrCredentialExpired = errors.New("zsxq cookie expired or invalid")

// CredentialAlerter is told when the cookie stops working.
type CredentialAlerter interface {
	NotifyCookieExpired(ctx context.Context) error
}

// ZsxqClient talks to the community API with a browser cookie. One client
// serves one fetch round at a time.
type ZsxqClient struct {
	apiBase         string
	countPerRequest int
	http            *HttpClient
	alerter         CredentialAlerter
	archive         file_store.CollectedFileStore

	mu      sync.Mutex
	alerted bool
}

type ZsxqClientOption func(*ZsxqClient)

func WithApiBase(apiBase string) ZsxqClientOption {
	return func(c *ZsxqClient) { c.apiBase = strings.TrimRight(apiBase, "/") }
}

func WithCountPerRequest(count int) ZsxqClientOption {
	return func(c *ZsxqClient) {
		if count > 0 {
			c.countPerRequest = count
		}
	}
}

func WithCredentialAlerter(alerter CredentialAlerter) ZsxqClientOption {
	return func(c *ZsxqClient) { c.alerter = alerter }
}

// WithRawArchive stores every successful raw response body.
func WithRawArchive(archive file_store.CollectedFileStore) ZsxqClientOption {
	return func(c *ZsxqClient) { c.archive = archive }
}

func NewZsxqClient(cookie string, opts ...ZsxqClientOption) *ZsxqClient {
	header := http.Header{}
	header.Set("Cookie", cookie)
	header.Set("Referer", ZsxqWebBase+"/")
	header.Set("Accept", "application/json, text/plain, */*")

	c := &ZsxqClient{
		apiBase:         ZsxqApiBase,
		countPerRequest: DefaultCountPerRequest,
		http:            NewHttpClient(header, DefaultUserAgents),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResetAuthAlert re-arms the cookie-expired alert, called at the start of
// every fetch round so each round alerts at most once.
func (c *ZsxqClient) ResetAuthAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerted = false
}

func (c *ZsxqClient) credentialExpired(ctx context.Context, uri string) error {
	Logger.Log.WithField("url", uri).Error("cookie expired or invalid (401)")

	c.mu.Lock()
	shouldAlert := c.alerter != nil && !c.alerted
	c.alerted = true
	c.mu.Unlock()

	if shouldAlert {
		if err := c.alerter.NotifyCookieExpired(ctx); err != nil {
			Logger.Log.Errorf("fail to send cookie expired alert: %v", err)
		}
	}
	return ErrCredentialExpired
}

// GetRaw returns the payload of path, unwrapped from the response envelope.
func (c *ZsxqClient) GetRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	uri := c.apiBase + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	body, err := c.http.Get(ctx, uri)
	if err != nil {
		var statusErr *HttpStatusError
		if errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return nil, c.credentialExpired(ctx, uri)
		}
		return nil, err
	}

	if c.archive != nil {
		if _, err := c.archive.Store(ctx, strings.TrimPrefix(path, "/")+"?"+query.Encode(), body); err != nil {
			Logger.Log.Warnf("fail to archive raw response of %s: %v", uri, err)
		}
	}

	var envelope zsxqEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrapf(err, "fail to decode response of %s", uri)
	}
	if !envelope.Succeeded {
		if envelope.Code == http.StatusUnauthorized {
			return nil, c.credentialExpired(ctx, uri)
		}
		return nil, errors.Errorf("request %s not succeeded, code: %d, info: %s", uri, envelope.Code, envelope.Info)
	}
	return envelope.payload(), nil
}

func (c *ZsxqClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	payload, err := c.GetRaw(ctx, path, query)
	if err != nil {
		return err
	}
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(payload, out), "fail to decode payload of %s", path)
}

func (c *ZsxqClient) GetUserGroups(ctx context.Context) ([]ZsxqGroup, error) {
	var payload groupsPayload
	if err := c.get(ctx, "/groups", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Groups, nil
}

// GetTopics lists topics of a group by scope, one of ScopeAll, ScopeDigests or
// ScopeQA.
func (c *ZsxqClient) GetTopics(ctx context.Context, groupId string, scope string) ([]ZsxqTopic, error) {
	query := url.Values{}
	query.Set("scope", scope)
	query.Set("count", strconv.Itoa(c.countPerRequest))
	var payload topicsPayload
	if err := c.get(ctx, "/groups/"+groupId+"/topics", query, &payload); err != nil {
		return nil, err
	}
	return payload.Topics, nil
}

func (c *ZsxqClient) GetColumnTopics(ctx context.Context, groupId string, columnId string) ([]ZsxqTopic, error) {
	query := url.Values{}
	query.Set("scope", ScopeByColumn)
	query.Set("column_id", columnId)
	query.Set("count", strconv.Itoa(c.countPerRequest))
	var payload topicsPayload
	if err := c.get(ctx, "/groups/"+groupId+"/topics", query, &payload); err != nil {
		return nil, err
	}
	return payload.Topics, nil
}

func (c *ZsxqClient) GetColumns(ctx context.Context, groupId string) ([]ZsxqColumn, error) {
	var payload columnsPayload
	if err := c.get(ctx, "/groups/"+groupId+"/columns", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Columns, nil
}

func (c *ZsxqClient) GetFiles(ctx context.Context, groupId string) ([]ZsxqFile, error) {
	query := url.Values{}
	query.Set("count", strconv.Itoa(c.countPerRequest))
	var payload filesPayload
	if err := c.get(ctx, "/groups/"+groupId+"/files", query, &payload); err != nil {
		return nil, err
	}
	return payload.Files, nil
}

// FetchResult is everything one round collected. Failed calls contributed no
// posts but did not stop the round.
type FetchResult struct {
	Posts             []model.Post
	FailedCalls       int
	CredentialExpired bool
}

func (r *FetchResult) record(source string, err error) bool {
	if err == nil {
		return true
	}
	r.FailedCalls++
	if errors.Is(err, ErrCredentialExpired) {
		r.CredentialExpired = true
		return false
	}
	Logger.Log.WithField("source", source).Errorf("fetch failed, continue with other sources: %v", err)
	return false
}

// FetchAll collects every source kind of a group in a fixed order: digests,
// all topics, each column, files, Q&A. A failing call only loses its own items.
func (c *ZsxqClient) FetchAll(ctx context.Context, groupId string) *FetchResult {
	c.ResetAuthAlert()
	result := &FetchResult{}
	log := Logger.Log.WithFields(logrus.Fields{"group_id": groupId})

	for _, scope := range []struct {
		scope   string
		section string
	}{{ScopeDigests, SectionDigests}, {ScopeAll, SectionAll}} {
		topics, err := c.GetTopics(ctx, groupId, scope.scope)
		if result.record("topics_"+scope.scope, err) {
			for i := range topics {
				result.Posts = append(result.Posts, TopicToPost(groupId, &topics[i], scope.section))
			}
		}
	}

	columns, err := c.GetColumns(ctx, groupId)
	if result.record("columns", err) {
		for _, column := range columns {
			name := column.Name
			if name == "" {
				name = SectionColumn
			}
			log.Infof("fetching articles from column: %s (%s)", name, FormatId(column.ColumnID))
			topics, err := c.GetColumnTopics(ctx, groupId, FormatId(column.ColumnID))
			if !result.record("column_"+FormatId(column.ColumnID), err) {
				continue
			}
			for i := range topics {
				result.Posts = append(result.Posts, TopicToPost(groupId, &topics[i], name))
			}
		}
	}

	files, err := c.GetFiles(ctx, groupId)
	if result.record("files", err) {
		for i := range files {
			result.Posts = append(result.Posts, FileToPost(groupId, &files[i]))
		}
	}

	questions, err := c.GetTopics(ctx, groupId, ScopeQA)
	if result.record("questions", err) {
		for i := range questions {
			result.Posts = append(result.Posts, QuestionToPost(groupId, &questions[i]))
		}
	}

	log.WithFields(logrus.Fields{
		"posts":        len(result.Posts),
		"failed_calls": result.FailedCalls,
	}).Info("fetch round finished")
	return result
}
