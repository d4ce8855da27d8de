package sapsvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sethvargo/go-retry"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
)

const (
	pathBusinessUnits = "/business-units"
	pathDivisions     = "/divisions"
	pathDepartments   = "/departments"
)

// Client reads the organisation from the SAP REST gateway.
type Client struct {
	baseURL string
	auth    string
	http    *rest.Client
	backoff func() retry.Backoff
}

var _ sapsync.Source = (*Client)(nil)

func NewClient(conf core.SAPConfig) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(conf.Username + ":" + conf.Password))
	return &Client{
		baseURL: conf.BaseURL,
		auth:    "Basic " + creds,
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.Timeout}},
		backoff: func() retry.Backoff {
			b := retry.NewExponential(500 * time.Millisecond)
			b = retry.WithCappedDuration(5*time.Second, b)
			return retry.WithMaxRetries(conf.MaxRetries, b)
		},
	}
}

func (c *Client) FetchBusinessUnits(ctx context.Context) ([]sapsync.Record, error) {
	return c.fetch(ctx, pathBusinessUnits)
}

func (c *Client) FetchDivisions(ctx context.Context) ([]sapsync.Record, error) {
	return c.fetch(ctx, pathDivisions)
}

func (c *Client) FetchDepartments(ctx context.Context) ([]sapsync.Record, error) {
	return c.fetch(ctx, pathDepartments)
}

// fetch GETs path; network failures and 5xx responses are retried.
func (c *Client) fetch(ctx context.Context, path string) ([]sapsync.Record, error) {
	req := rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Authorization": c.auth,
			"Accept":        "application/json",
		},
	}

	var body string
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		res, err := c.http.SendWithContext(ctx, req)
		if err != nil {
			return retry.RetryableError(errors.Wrapf(err, "GET %s", path))
		}
		switch {
		case res.StatusCode >= http.StatusInternalServerError:
			return retry.RetryableError(fmt.Errorf("GET %s: status %d", path, res.StatusCode))
		case res.StatusCode >= http.StatusBadRequest:
			return fmt.Errorf("GET %s: status %d: %s", path, res.StatusCode, res.Body)
		}
		body = res.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeRecords([]byte(body))
}

// decodeRecords accepts a bare array or an object wrapping it under "items" or "data".
func decodeRecords(data []byte) ([]sapsync.Record, error) {
	data = bytes.TrimSpace(data)
	var records []sapsync.Record
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, errors.Wrap(err, "decoding SAP records")
		}
		return records, nil
	}

	var envelope struct {
		Items []sapsync.Record `json:"items"`
		Data  []sapsync.Record `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(err, "decoding SAP records")
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	if envelope.Data == nil {
		return []sapsync.Record{}, nil
	}
	return envelope.Data, nil
}
