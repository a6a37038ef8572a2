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

package portfolio

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuditSink receives a message for every mutation made to a position
type AuditSink interface {
	RecordEvent(msg string) error
}

// LogSink writes audit events to a zerolog logger; the global logger is used when Logger is nil
type LogSink struct {
	Logger *zerolog.Logger
}

func (s LogSink) RecordEvent(msg string) error {
	logger := s.Logger
	if logger == nil {
		logger = &log.Logger
	}
	logger.Info().Str("Event", "audit").Msg(msg)
	return nil
}

// NopSink discards every event
type NopSink struct{}

func (NopSink) RecordEvent(string) error {
	return nil
}

// record sends msg to the position's sink. Failures are logged and never interrupt the mutation
func (p *Position) record(msg string) {
	if p.audit == nil {
		return
	}
	if err := p.audit.RecordEvent(msg); err != nil {
		log.Warn().Err(err).Str("Ticker", p.ticker).Str("AuditMsg", msg).Msg("audit sink failed to record event")
	}
}
