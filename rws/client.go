package rws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
)

// Ресурсы RWS, из которых собирается описание контроллера.
const (
	PathSystem         = "/rw/system"
	PathSystemOptions  = "/rw/system/options"
	PathMechUnits      = "/rw/motionsystem/mechunits"
	PathArmInstances   = "/rw/cfg/MOC/ARM/instances"
	DefaultHTTPTimeout = 5 * time.Second
)

// Client - HTTP-клиент Robot Web Services с сессией на cookie.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient создает клиента для контроллера из запроса.
func NewClient(req models.RWSRequest, timeout time.Duration, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	scheme := "http"
	if req.Port == 443 {
		scheme = "https"
	}

	return &Client{
		baseURL:  fmt.Sprintf("%s://%s:%d", scheme, req.Host, req.Port),
		username: req.Username,
		password: req.Password,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// Entry - одна запись "_embedded._state" ответа RWS. Набор заполненных полей зависит от ресурса.
type Entry struct {
	Type      string     `json:"_type"`
	Title     string     `json:"_title"`
	RWVersion string     `json:"rwversion"`
	Option    string     `json:"option"`
	Mode      string     `json:"mode"`
	UnitType  string     `json:"type"`
	Axes      string     `json:"axes"`
	AxesTotal string     `json:"axes-total"`
	Task      string     `json:"task-name"`
	Attrib    Attributes `json:"attrib"`
}

// Attribute - атрибут экземпляра конфигурации.
type Attribute struct {
	Title string `json:"_title"`
	Value string `json:"value"`
}

type resource struct {
	Embedded struct {
		State []Entry `json:"_state"`
	} `json:"_embedded"`
}

// GetState запрашивает ресурс и возвращает его записи состояния.
func (c *Client) GetState(ctx context.Context, path string) ([]Entry, error) {
	u := c.baseURL + path + "?" + url.Values{"json": {"1"}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/hal+json;v=2.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status code %d for %s: %s", resp.StatusCode, path, body)
	}

	var res resource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding response %s: %w", path, err)
	}

	c.logger.Debug("RWS resource fetched", "path", path, "entries", len(res.Embedded.State))
	return res.Embedded.State, nil
}

// Attributes - список атрибутов экземпляра конфигурации.
type Attributes []Attribute

// Value возвращает значение атрибута по заголовку.
func (a Attributes) Value(title string) (string, bool) {
	for _, at := range a {
		if at.Title == title {
			return at.Value, true
		}
	}
	return "", false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
