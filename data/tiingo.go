// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/dataframe"
	"github.com/penny-vault/positions/observability/opentelemetry"
)

const (
	DefaultTiingoURL     = "https://api.tiingo.com"
	DefaultTiingoTimeout = 30 * time.Second
	DefaultMaxRetries    = 3
)

// Tiingo fetches end-of-day prices from the tiingo REST api
type Tiingo struct {
	apikey     string
	baseURL    string
	client     *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

type TiingoOption func(*Tiingo)

type tiingoJSONResponse struct {
	Date        string  `json:"date"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Open        float64 `json:"open"`
	Volume      int64   `json:"volume"`
	AdjClose    float64 `json:"adjClose"`
	AdjHigh     float64 `json:"adjHigh"`
	AdjLow      float64 `json:"adjLow"`
	AdjOpen     float64 `json:"adjOpen"`
	AdjVolume   int64   `json:"adjVolume"`
	DivCash     float64 `json:"divCash"`
	SplitFactor float64 `json:"splitFactor"`
}

// WithBaseURL points the provider at a different tiingo host
func WithBaseURL(url string) TiingoOption {
	return func(t *Tiingo) {
		t.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTimeout sets the timeout of each individual HTTP request
func WithTimeout(timeout time.Duration) TiingoOption {
	return func(t *Tiingo) {
		t.client.Timeout = timeout
	}
}

// WithMaxRetries sets how many times a failed request is retried
func WithMaxRetries(n uint64) TiingoOption {
	return func(t *Tiingo) {
		t.maxRetries = n
	}
}

// WithBackOff replaces the exponential back-off policy used between retries
func WithBackOff(f func() backoff.BackOff) TiingoOption {
	return func(t *Tiingo) {
		t.newBackOff = f
	}
}

// NewTiingo creates a new Tiingo data provider
func NewTiingo(key string, opts ...TiingoOption) *Tiingo {
	t := &Tiingo{
		apikey:     key,
		baseURL:    DefaultTiingoURL,
		client:     &http.Client{Timeout: DefaultTiingoTimeout},
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// FetchHistory downloads daily prices for symbol between begin and end (inclusive). Transient
// failures (network errors, 5xx, 429) are retried with back-off; every failure is returned as
// an *UnavailableError
func (t *Tiingo) FetchHistory(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame[time.Time], error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.FetchHistory")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()
	span.SetAttributes(attribute.String("Symbol", symbol))

	if end.Before(begin) {
		span.SetStatus(codes.Error, ErrInvalidTimeRange.Error())
		return nil, unavailable(symbol, ErrInvalidTimeRange)
	}

	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&token=%s", t.baseURL, symbol,
		begin.Format(common.DateFormat), end.Format(common.DateFormat), t.apikey)

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		body, err = t.get(ctx, url)
		if err != nil {
			subLog.Warn().Err(err).Int("Attempt", attempt).Msg("tiingo request failed")
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), t.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tiingo request failed")
		return nil, unavailable(symbol, err)
	}

	jsonResp := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return nil, unavailable(symbol, err)
	}

	if len(jsonResp) == 0 {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return nil, unavailable(symbol, ErrEmptyResponse)
	}

	df := &dataframe.DataFrame[time.Time]{
		Index:    make([]time.Time, 0, len(jsonResp)),
		ColNames: []string{MetricAdjustedClose, MetricClose},
		Vals:     [][]float64{make([]float64, 0, len(jsonResp)), make([]float64, 0, len(jsonResp))},
	}

	for _, quote := range jsonResp {
		dtParts := strings.Split(quote.Date, "T")
		dt, err := common.ParseDate(dtParts[0])
		if err != nil {
			span.RecordError(err)
			subLog.Error().Err(err).Str("DateStr", quote.Date).Msg("cannot parse date string")
			return nil, unavailable(symbol, err)
		}
		if len(df.Index) > 0 && !dt.After(df.End()) {
			continue
		}
		df.InsertRow(dt, quote.AdjClose, quote.Close)
	}

	span.SetAttributes(attribute.Int("NumRows", df.Len()))
	subLog.Debug().Int("NumRows", df.Len()).Msg("fetched price history")

	return df, nil
}

// get issues a single request; errors that cannot be fixed by retrying are marked permanent
func (t *Tiingo) get(ctx context.Context, url string) ([]byte, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.get")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	span.SetAttributes(opentelemetry.SpanAttributesFromRequest(req)...)

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		span.SetStatus(codes.Error, ErrNotFound.Error())
		return nil, backoff.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		span.SetStatus(codes.Error, "tiingo returned invalid response code")
		return nil, fmt.Errorf("HTTP request returned invalid status code: %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		span.SetStatus(codes.Error, "tiingo returned invalid response code")
		return nil, backoff.Permanent(fmt.Errorf("HTTP request returned invalid status code: %d", resp.StatusCode))
	}

	return body, nil
}
