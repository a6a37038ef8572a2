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

package messenger

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/positions/common"
)

const (
	DefaultAuditSubject = "positions.audit"
)

var (
	ErrFlushTimeout = errors.New("timed out waiting for audit events to be acknowledged")
)

// Publisher is the subset of nats.JetStreamContext used to publish audit events
type Publisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// AuditEvent is the JSON payload published for every position mutation
type AuditEvent struct {
	Event       string `json:"event"`
	RecordTime  string `json:"record_time"`
	ProgramName string `json:"program"`
}

// AuditSink publishes position mutations to a JetStream subject
type AuditSink struct {
	js      Publisher
	subject string
	now     func() time.Time
}

// Connect to the nats server and return the connection with its jetstream context. The caller
// owns the connection and must drain it when done
func Connect(url, credentialsFile string) (*nats.Conn, nats.JetStreamContext, error) {
	opts := []nats.Option{nats.Name(common.ProgramName)}
	if credentialsFile != "" {
		opts = append(opts, nats.UserCredentials(credentialsFile))
	}

	log.Info().Str("NATSServer", url).Str("Credentials", credentialsFile).Msg("connecting to NATS server")
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		log.Error().Err(err).Msg("could not connect to NATS server")
		return nil, nil, err
	}

	js, err := conn.JetStream(
		nats.PublishAsyncMaxPending(256),
		nats.PublishAsyncErrHandler(func(_ nats.JetStream, msg *nats.Msg, err error) {
			log.Warn().Err(err).Str("Subject", msg.Subject).Msg("audit event was not acknowledged")
		}),
	)
	if err != nil {
		log.Error().Err(err).Msg("could not create jetstream context")
		conn.Close()
		return nil, nil, err
	}

	return conn, js, nil
}

// NewAuditSink publishes to subject; DefaultAuditSubject is used when subject is blank
func NewAuditSink(js Publisher, subject string) *AuditSink {
	if subject == "" {
		subject = DefaultAuditSubject
	}
	return &AuditSink{
		js:      js,
		subject: subject,
		now:     time.Now,
	}
}

// RecordEvent publishes msg without waiting for the server to acknowledge it. Failures to
// acknowledge are logged by the connection's error handler
func (s *AuditSink) RecordEvent(msg string) error {
	event := AuditEvent{
		Event:       msg,
		RecordTime:  s.now().In(common.GetTimezone()).Format(time.RFC3339),
		ProgramName: common.ProgramName,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("could not serialize audit event to JSON")
		return err
	}

	if _, err := s.js.PublishAsync(s.subject, payload); err != nil {
		log.Error().Err(err).Str("Subject", s.subject).Msg("could not publish audit event")
		return err
	}

	return nil
}

// Flush waits up to timeout for every outstanding event to be acknowledged
func (s *AuditSink) Flush(timeout time.Duration) error {
	select {
	case <-s.js.PublishAsyncComplete():
		return nil
	case <-time.After(timeout):
		return ErrFlushTimeout
	}
}
