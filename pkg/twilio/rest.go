package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pfeddy91/better-call-robots-sub000/internal/httpc"
	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
)

const defaultAPIBaseURL = "https://api.twilio.com"

// RestClient places and ends calls through the Twilio REST API.
type RestClient struct {
	// BaseURL is the API endpoint, overridable for tests.
	BaseURL string

	accountSID string
	authToken  string
	http       *http.Client
	logger     *slog.Logger
}

// NewRestClient creates a REST client for the given account.
func NewRestClient(accountSID, authToken string) (*RestClient, error) {
	if accountSID == "" || authToken == "" {
		return nil, ErrMissingCredentials
	}

	return &RestClient{
		BaseURL:    defaultAPIBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		http:       httpc.Client,
		logger:     log.Component("twilio.rest"),
	}, nil
}

// CallResource is the subset of Twilio's call resource the relay uses.
type CallResource struct {
	SID       string `json:"sid"`
	Status    string `json:"status"`
	To        string `json:"to"`
	From      string `json:"from"`
	Direction string `json:"direction"`
}

// CreateCall starts an outbound call. Twilio fetches TwiML from
// twimlURL once the callee answers.
func (r *RestClient) CreateCall(ctx context.Context, to, from, twimlURL string) (*CallResource, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Url", twimlURL)

	var call CallResource
	if err := r.postForm(ctx, r.callsURL(""), form, &call); err != nil {
		return nil, err
	}

	r.logger.Info("outbound call created", "call_sid", call.SID, "to", to, "status", call.Status)
	return &call, nil
}

// EndCall terminates an in-progress call.
func (r *RestClient) EndCall(ctx context.Context, callSID string) error {
	if callSID == "" {
		return ErrMissingCallSID
	}

	form := url.Values{}
	form.Set("Status", "completed")

	if err := r.postForm(ctx, r.callsURL(callSID), form, nil); err != nil {
		return err
	}

	r.logger.Info("call ended", "call_sid", callSID)
	return nil
}

// callsURL builds the calls endpoint for the account, or for one call
// when callSID is set.
func (r *RestClient) callsURL(callSID string) string {
	if callSID == "" {
		return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", r.BaseURL, r.accountSID)
	}
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", r.BaseURL, r.accountSID, callSID)
}

// postForm sends a form-encoded request and decodes the response into
// out when it is non-nil.
func (r *RestClient) postForm(ctx context.Context, u string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(r.accountSID, r.authToken)

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("twilio: decode response: %w", err)
	}
	return nil
}

// parseAPIError decodes Twilio's error body.
func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb struct {
		Code     int    `json:"code"`
		Message  string `json:"message"`
		MoreInfo string `json:"more_info"`
	}
	if err := json.Unmarshal(body, &eb); err != nil || eb.Message == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       eb.Code,
		Message:    eb.Message,
		MoreInfo:   eb.MoreInfo,
	}
}
