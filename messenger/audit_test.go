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

package messenger_test

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/messenger"
	"github.com/penny-vault/positions/portfolio"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs     []published
	err      error
	complete chan struct{}
}

func (f *fakePublisher) PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subject: subj, data: data})
	return nil, nil
}

func (f *fakePublisher) PublishAsyncComplete() <-chan struct{} {
	return f.complete
}

var _ = Describe("AuditSink", func() {
	var (
		js *fakePublisher
	)

	BeforeEach(func() {
		js = &fakePublisher{complete: make(chan struct{})}
	})

	It("publishes position mutations", func() {
		sink := messenger.NewAuditSink(js, "")
		pos, err := portfolio.NewPosition("SPY", common.MustParseDate("2020-02-05"), 300, 1, portfolio.WithAuditSink(sink))
		Expect(err).To(BeNil())
		_, err = pos.Sell(common.MustParseDate("2020-02-06"), 305, 1)
		Expect(err).To(BeNil())

		Expect(js.msgs).To(HaveLen(2))
		Expect(js.msgs[0].subject).To(Equal(messenger.DefaultAuditSubject))

		var event messenger.AuditEvent
		Expect(json.Unmarshal(js.msgs[1].data, &event)).To(Succeed())
		Expect(event.Event).To(HavePrefix("STC 1 shares of SPY"))
		Expect(event.ProgramName).To(Equal(common.ProgramName))
		Expect(event.RecordTime).ToNot(BeEmpty())
	})

	It("uses the configured subject", func() {
		sink := messenger.NewAuditSink(js, "audit.custom")
		Expect(sink.RecordEvent("hello")).To(Succeed())
		Expect(js.msgs[0].subject).To(Equal("audit.custom"))
	})

	It("returns publish failures", func() {
		js.err = errors.New("no responders")
		sink := messenger.NewAuditSink(js, "")
		Expect(sink.RecordEvent("hello")).To(MatchError("no responders"))
	})

	It("flushes once outstanding events are acknowledged", func() {
		sink := messenger.NewAuditSink(js, "")
		Expect(sink.RecordEvent("hello")).To(Succeed())
		close(js.complete)
		Expect(sink.Flush(time.Second)).To(Succeed())
	})

	It("gives up flushing after the timeout", func() {
		sink := messenger.NewAuditSink(js, "")
		Expect(sink.RecordEvent("hello")).To(Succeed())
		Expect(sink.Flush(10 * time.Millisecond)).To(MatchError(messenger.ErrFlushTimeout))
	})
})
