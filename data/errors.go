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
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable  = errors.New("price history unavailable")
	ErrEmptyResponse    = errors.New("no data returned")
	ErrInvalidTimeRange = errors.New("start must be before end")
	ErrNotFound         = errors.New("security not found")
)

// UnavailableError is returned by every HistoryProvider when price history for Symbol could
// not be retrieved. It matches ErrDataUnavailable with errors.Is and unwraps to the cause
type UnavailableError struct {
	Symbol string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDataUnavailable, e.Symbol, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

func unavailable(symbol string, err error) error {
	var existing *UnavailableError
	if errors.As(err, &existing) {
		return err
	}
	return &UnavailableError{Symbol: symbol, Err: err}
}
