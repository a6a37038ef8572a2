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

package tradecron

import (
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var (
	ErrConflictingModifiers = errors.New("only one date modifier may be specified")
	ErrUnknownModifier      = errors.New("unknown schedule modifier")
	ErrMalformedTimeSpec    = errors.New("malformed date spec")
)

const (
	AtWeekBegin  = "@weekbegin"
	AtWeekEnd    = "@weekend"
	AtMonthBegin = "@monthbegin"
	AtMonthEnd   = "@monthend"
)

// TradeCron is a market aware date schedule. It supports the date portion of the
// standard CRON format: DayOfMonth(DoM) Month(M) DayOfWeek(DoW)
//
// '*' wildcards only match trading days
//
// Additional market-aware modifiers are supported:
//
//	@weekbegin  - first trading day of week
//	@weekend    - last trading day of week
//	@monthbegin - first trading day of month
//	@monthend   - last trading day of month
//
// Examples:
//   - every trading day: * * *
//   - tuesdays: * * 2
//   - last trading day of december: @monthend * 12 *
type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	DateSpec       string
	DateFlag       string
}

// New parses the schedule string into a TradeCron
func New(spec string) (*TradeCron, error) {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	scheduleStr := strings.TrimSpace(spec)

	dateSpecTokens := make([]string, 0, 3)
	var dateFlag string
	for _, token := range strings.Fields(scheduleStr) {
		if token[0] != '@' {
			dateSpecTokens = append(dateSpecTokens, token)
			continue
		}

		switch token {
		case AtWeekBegin, AtWeekEnd, AtMonthBegin, AtMonthEnd:
			if dateFlag != "" {
				return nil, ErrConflictingModifiers
			}
			dateFlag = token
		default:
			return nil, ErrUnknownModifier
		}
	}

	if len(dateSpecTokens) > 3 {
		return nil, ErrMalformedTimeSpec
	}

	for len(dateSpecTokens) < 3 {
		dateSpecTokens = append(dateSpecTokens, "*")
	}

	dateSpec := strings.Join(dateSpecTokens, " ")
	schedule, err := specParser.Parse("0 0 " + dateSpec)
	if err != nil {
		log.Error().Err(err).Str("DateSpec", dateSpec).Str("TradeCronSpec", spec).Msg("robfig/cron could not parse date spec")
		return nil, err
	}

	return &TradeCron{
		Schedule:       schedule,
		ScheduleString: spec,
		DateSpec:       dateSpec,
		DateFlag:       dateFlag,
	}, nil
}

// IsTradeDay evaluates the given date against the schedule and returns true if the date falls
// on a trading day according to the schedule. The time portion of forDate is ignored
func (tc *TradeCron) IsTradeDay(forDate time.Time) bool {
	day := midnight(forDate)
	if !IsTradeDay(day) {
		return false
	}

	next := tc.Schedule.Next(day.Add(-time.Nanosecond))
	if !midnight(next).Equal(day) {
		return false
	}

	switch tc.DateFlag {
	case AtWeekBegin:
		return WeekBegin(day).Equal(day)
	case AtWeekEnd:
		return WeekEnd(day).Equal(day)
	case AtMonthBegin:
		return MonthBegin(day).Equal(day)
	case AtMonthEnd:
		return MonthEnd(day).Equal(day)
	default:
		return true
	}
}
