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

package common

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/viper"
)

const (
	DateFormat = "2006-01-02"
)

var (
	tzOnce sync.Once
	tz     *time.Location
)

// ArrToUpper uppercase every string in array
func ArrToUpper(arr []string) {
	for ii := range arr {
		arr[ii] = strings.ToUpper(strings.TrimSpace(arr[ii]))
	}
}

// SetupLogging configures the global zerolog logger from the log.* viper keys
func SetupLogging() {
	level := strings.ToLower(viper.GetString("log.level"))

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	// Set report caller
	if viper.GetBool("log.report_caller") {
		log.Logger = log.With().Caller().Logger()
	}

	// Setup output
	output := viper.GetString("log.output")
	switch output {
	case "", "stderr":
		if viper.GetBool("log.pretty") {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		} else {
			log.Logger = log.Output(os.Stderr)
		}
	case "stdout":
		if viper.GetBool("log.pretty") {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		} else {
			log.Logger = log.Output(os.Stdout)
		}
	default:
		// the file handle lives for the remainder of the process
		fh, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			log.Panic().Err(err).Str("Output", output).Msg("could not open log file")
		}
		if viper.GetBool("log.pretty") {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: fh, NoColor: true})
		} else {
			log.Logger = log.Output(fh)
		}
	}

	// setup stack marshaler
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// GetTimezone returns the reference timezone for all trading dates. The same *time.Location is
// returned on every call so dates built from it compare equal with ==
func GetTimezone() *time.Location {
	tzOnce.Do(func() {
		var err error
		tz, err = time.LoadLocation("America/New_York") // New York is the reference time
		if err != nil {
			log.Panic().Err(err).Msg("could not load timezone")
		}
	})
	return tz
}

// ParseDate parses a YYYY-MM-DD string as midnight in the reference timezone
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, strings.TrimSpace(s), GetTimezone())
}

// MustParseDate is like ParseDate but panics if the string cannot be parsed
func MustParseDate(s string) time.Time {
	dt, err := ParseDate(s)
	if err != nil {
		log.Panic().Err(err).Str("Input", s).Msg("could not parse date")
	}
	return dt
}

// Day keeps the calendar date of t and moves it to midnight in the reference timezone
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, GetTimezone())
}
