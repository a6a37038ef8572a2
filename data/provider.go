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
	"time"

	"github.com/penny-vault/positions/dataframe"
)

const (
	MetricClose         = "Close"
	MetricAdjustedClose = "AdjustedClose"
)

// HistoryProvider retrieves the end-of-day price history of a single security between begin and end
// (inclusive). The returned dataframe is indexed by trading date (midnight, America/New_York) and
// carries at least the MetricAdjustedClose and MetricClose columns. Any failure is reported as
// an error matching ErrDataUnavailable
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame[time.Time], error)
}
