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

import "errors"

var (
	ErrInvalidDate     = errors.New("date is not a weekday")
	ErrInvalidState    = errors.New("position is in the wrong lifecycle state for this operation")
	ErrTemporalOrder   = errors.New("trades are out of date order")
	ErrDuplicateID     = errors.New("position id already in portfolio")
	ErrDuplicateSymbol = errors.New("ticker already in portfolio")
	ErrLengthMismatch  = errors.New("symbols, dates and weights have inconsistent lengths")
	ErrPrecondition    = errors.New("precondition not satisfied")
	ErrTickerMismatch  = errors.New("positions have different tickers")
)
