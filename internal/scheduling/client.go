package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to the scheduling service's appointment endpoint.
type HTTPClient struct {
	hc      *http.Client
	baseURL string
}

func New(baseURL string) *HTTPClient {
	return &HTTPClient{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type appointmentRequest struct {
	Email            string `json:"email"`
	Timezone         string `json:"timezone,omitempty"`
	StartTime        string `json:"startTime"`
	DurationMinutes  int    `json:"durationMinutes"`
	CreatesVideoLink bool   `json:"createsVideoLink"`
	ExternalKey      string `json:"externalKey,omitempty"`
	RoomID           string `json:"roomId,omitempty"`
	AgentID          string `json:"agentId,omitempty"`
}

type appointmentResponse struct {
	OK         bool     `json:"ok"`
	EventID    string   `json:"eventId"`
	InviteLink string   `json:"inviteLink"`
	WhenText   string   `json:"whenText"`
	ErrorKind  string   `json:"error"`
	Message    string   `json:"message"`
	Conflicts  []string `json:"conflicts"`
}

func (c *HTTPClient) CreateAppointment(ctx context.Context, req Request) (Booking, error) {
	body, err := json.Marshal(appointmentRequest{
		Email:            req.Email,
		Timezone:         req.Timezone,
		StartTime:        req.Start.Format(time.RFC3339),
		DurationMinutes:  req.DurationMinutes,
		CreatesVideoLink: req.WantsVideoLink,
		ExternalKey:      req.IdempotencyKey,
		RoomID:           req.RoomID,
		AgentID:          req.AgentID,
	})
	if err != nil {
		return Booking{}, &Error{Kind: KindInput, Message: err.Error()}
	}

	status, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/appointments", body)
	if err != nil {
		return Booking{}, &Error{Kind: KindInfra, Message: err.Error()}
	}

	var res appointmentResponse
	if err := json.Unmarshal(respBody, &res); err != nil && status < 400 {
		return Booking{}, &Error{Kind: KindInfra, Message: fmt.Sprintf("malformed response (status=%d)", status)}
	}

	switch {
	case status < 400 && res.OK:
		return Booking{EventID: res.EventID, InviteLink: res.InviteLink, WhenText: res.WhenText}, nil
	case status == http.StatusConflict && res.ErrorKind == "duplicate":
		return Booking{}, &Error{Kind: KindDuplicate, Message: message(res, status)}
	case status == http.StatusConflict:
		return Booking{}, &Error{Kind: KindConflict, Message: message(res, status), Conflicts: res.Conflicts}
	case status >= 400 && status < 500:
		return Booking{}, &Error{Kind: KindInput, Message: message(res, status)}
	default:
		return Booking{}, &Error{Kind: KindInfra, Message: message(res, status)}
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return &Error{Kind: KindInfra, Message: err.Error()}
	}
	if status >= 400 {
		return &Error{Kind: KindInfra, Message: fmt.Sprintf("ping failed (status=%d)", status)}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

func message(res appointmentResponse, status int) string {
	if res.Message != "" {
		return res.Message
	}
	if res.ErrorKind != "" {
		return fmt.Sprintf("%s (status=%d)", res.ErrorKind, status)
	}
	return fmt.Sprintf("status=%d", status)
}
