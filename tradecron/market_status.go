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
	"sync"
	"time"

	"github.com/penny-vault/positions/common"
	"github.com/rs/zerolog/log"
)

var (
	holidays      = make(map[int64]bool)
	holidayLocker sync.RWMutex
)

// SetMarketHolidays replaces the registered market holidays
func SetMarketHolidays(dates ...time.Time) {
	holidayLocker.Lock()
	defer holidayLocker.Unlock()

	holidays = make(map[int64]bool, len(dates))
	for _, dt := range dates {
		holidays[midnight(dt).Unix()] = true
	}

	log.Debug().Int("NumHolidays", len(holidays)).Msg("registered market holidays")
}

// IsMarketHoliday returns true if the specified date is a registered market holiday
func IsMarketHoliday(t time.Time) bool {
	holidayLocker.RLock()
	defer holidayLocker.RUnlock()

	return holidays[midnight(t).Unix()]
}

// IsWeekday returns true if t falls Monday through Friday
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsTradeDay returns true if the specified date is a valid trading day (i.e. not a market holiday or weekend)
func IsTradeDay(t time.Time) bool {
	return IsWeekday(t) && !IsMarketHoliday(t)
}

// MonthBegin returns the first trading day of the month t falls in
func MonthBegin(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, common.GetTimezone())
	for !IsTradeDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// MonthEnd returns the last trading day of the month t falls in
func MonthEnd(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, common.GetTimezone()).AddDate(0, 1, -1)
	for !IsTradeDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// WeekBegin returns the first trading day of the week (Monday based) t falls in
func WeekBegin(t time.Time) time.Time {
	t = midnight(t)
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	d := t.AddDate(0, 0, -offset)
	for !IsTradeDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// WeekEnd returns the last trading day of the week (Monday based) t falls in
func WeekEnd(t time.Time) time.Time {
	t = midnight(t)
	offset := int(time.Friday) - int(t.Weekday())
	if t.Weekday() == time.Sunday {
		offset = -2
	}
	d := t.AddDate(0, 0, offset)
	for !IsTradeDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// midnight keeps the calendar date of t and moves it to midnight in the reference timezone
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, common.GetTimezone())
}
