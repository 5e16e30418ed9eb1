// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Client talks the device's bit-exact HTTP contract (spec §6.1). It is
// deliberately independent of the device's own api package: a real
// deployment runs the supervisor as a separate process that only ever
// sees the device over the network.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client bound to the device at baseURL, with
// requestTimeout applied to every call.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type clientPoint struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	L1      *float64 `json:"l1,omitempty"`
	L2      *float64 `json:"l2,omitempty"`
	PenDown *bool    `json:"penDown,omitempty"`
	Speed   *int     `json:"speed,omitempty"`
}

type clientStartPosition struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	PenDown *bool    `json:"penDown,omitempty"`
}

type pathRequest struct {
	Reset         bool                 `json:"reset,omitempty"`
	EndOfJob      bool                 `json:"endOfJob,omitempty"`
	Speed         int                  `json:"speed,omitempty"`
	StartPosition *clientStartPosition `json:"startPosition,omitempty"`
	Points        []clientPoint        `json:"points"`
}

type pathResponse struct {
	Accepted    int  `json:"accepted"`
	QueueSize   int  `json:"queueSize"`
	IsExecuting bool `json:"isExecuting"`
}

type deviceStatusResponse struct {
	State struct {
		Initialized bool    `json:"initialized"`
		XMM         float64 `json:"x_mm"`
		YMM         float64 `json:"y_mm"`
		PenDown     bool    `json:"penDown"`
	} `json:"state"`
	Queue struct {
		Size        int  `json:"size"`
		IsExecuting bool `json:"isExecuting"`
	} `json:"queue"`
}

// ErrQueueFull is returned by SubmitChunk when the device responds 429.
var ErrQueueFull = errors.New("supervisor: device queue full")

// SubmitChunk posts one batch to /api/path. A 429 response is
// translated to ErrQueueFull so callers can apply backpressure instead
// of treating it as a hard failure.
func (c *Client) SubmitChunk(ctx context.Context, req pathRequest) (pathResponse, error) {
	var resp pathResponse
	body, err := json.Marshal(req)
	if err != nil {
		return resp, errors.Wrap(err, "supervisor: encode path request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/path", bytes.NewReader(body))
	if err != nil {
		return resp, errors.Wrap(err, "supervisor: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, errors.Wrap(err, "supervisor: submit chunk")
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode == http.StatusTooManyRequests {
		return resp, ErrQueueFull
	}
	if httpResp.StatusCode != http.StatusOK {
		return resp, fmt.Errorf("supervisor: device returned %s", httpResp.Status)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "supervisor: decode path response")
	}
	return resp, nil
}

// Cancel posts /api/cancel with the given timeout context.
func (c *Client) Cancel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/cancel", bytes.NewReader([]byte("{}")))
	if err != nil {
		return errors.Wrap(err, "supervisor: build cancel request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "supervisor: cancel request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supervisor: cancel returned %s", resp.Status)
	}
	return nil
}

// Status fetches /api/status and converts it to a ControllerSnapshot
// timestamped at now (unix seconds), as supplied by the caller.
func (c *Client) Status(ctx context.Context, now int64) (*ControllerSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: build status request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: status request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supervisor: status returned %s", resp.Status)
	}
	var ds deviceStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return nil, errors.Wrap(err, "supervisor: decode status response")
	}
	return &ControllerSnapshot{
		Initialized: ds.State.Initialized,
		XMM:         ds.State.XMM,
		YMM:         ds.State.YMM,
		PenDown:     ds.State.PenDown,
		QueueSize:   ds.Queue.Size,
		IsExecuting: ds.Queue.IsExecuting,
		FetchedAt:   now,
	}, nil
}
