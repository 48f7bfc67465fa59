package reporter_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/heartbeat-agent/internal/reporter"
)

type capturedRequest struct {
	method string
	query  url.Values
	close  bool
	header string
}

var _ = Describe("Sender", func() {
	var (
		ctx      context.Context
		report   reporter.Report
		mu       sync.Mutex
		captured []capturedRequest
		hits     atomic.Int32
	)

	record := func(r *http.Request) {
		hits.Add(1)
		mu.Lock()
		defer mu.Unlock()
		captured = append(captured, capturedRequest{
			method: r.Method,
			query:  r.URL.Query(),
			close:  r.Close,
			header: r.Header.Get("Connection"),
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		report = reporter.NewReport("worker-1", time.Unix(1700000000, 0), 7)
		hits.Store(0)
		mu.Lock()
		captured = nil
		mu.Unlock()
	})

	Describe("NewSender", func() {
		It("should reject unsupported schemes", func() {
			_, err := reporter.NewSender("ftp://controller", time.Second, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a non-positive timeout", func() {
			_, err := reporter.NewSender("http://controller:3000", 0, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when the controller answers", func() {
		var server *httptest.Server

		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				record(r)
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			}))
		})

		AfterEach(func() {
			server.Close()
		})

		It("should send one GET with the report as query parameters", func() {
			sender, err := reporter.NewSender(server.URL, 750*time.Millisecond, nil)
			Expect(err).NotTo(HaveOccurred())

			result := sender.Send(ctx, report)
			Expect(result.Outcome).To(Equal(reporter.OutcomeSuccess))
			Expect(result.OK()).To(BeTrue())
			Expect(result.StatusCode).To(Equal(http.StatusOK))
			Expect(result.Err).NotTo(HaveOccurred())

			Expect(hits.Load()).To(Equal(int32(1)))
			mu.Lock()
			defer mu.Unlock()
			Expect(captured[0].method).To(Equal(http.MethodGet))
			Expect(captured[0].query.Get("podname")).To(Equal("worker-1"))
			Expect(captured[0].query.Get("k")).To(Equal("1700000000"))
			Expect(captured[0].query.Get("a")).To(Equal("7"))
			Expect(captured[0].close).To(BeTrue())
		})

		It("should keep query parameters already on the controller url", func() {
			sender, err := reporter.NewSender(server.URL+"/?cluster=east", time.Second, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(sender.Send(ctx, report).OK()).To(BeTrue())
			mu.Lock()
			defer mu.Unlock()
			Expect(captured[0].query.Get("cluster")).To(Equal("east"))
			Expect(captured[0].query.Get("a")).To(Equal("7"))
		})

		It("should be stateless across repeated sends of the same report", func() {
			sender, err := reporter.NewSender(server.URL, time.Second, nil)
			Expect(err).NotTo(HaveOccurred())

			first := sender.Send(ctx, report)
			second := sender.Send(ctx, report)
			Expect(first.Outcome).To(Equal(second.Outcome))
			Expect(first.StatusCode).To(Equal(second.StatusCode))
			Expect(hits.Load()).To(Equal(int32(2)))

			mu.Lock()
			defer mu.Unlock()
			Expect(captured[0].query).To(Equal(captured[1].query))
		})
	})

	Context("when the controller rejects the report", func() {
		It("should succeed at transport level but not be OK", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				record(r)
				w.WriteHeader(http.StatusBadRequest)
			}))
			defer server.Close()

			sender, err := reporter.NewSender(server.URL, time.Second, nil)
			Expect(err).NotTo(HaveOccurred())

			result := sender.Send(ctx, report)
			Expect(result.Outcome).To(Equal(reporter.OutcomeSuccess))
			Expect(result.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(result.OK()).To(BeFalse())
		})
	})

	Context("when the controller is too slow", func() {
		It("should time out once without retrying", func() {
			release := make(chan struct{})
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				record(r)
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer func() {
				close(release)
				server.Close()
			}()

			sender, err := reporter.NewSender(server.URL, 100*time.Millisecond, nil)
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			result := sender.Send(ctx, report)
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			Expect(result.Outcome).To(Equal(reporter.OutcomeTimeout))
			Expect(result.Err).To(HaveOccurred())
			Expect(hits.Load()).To(Equal(int32(1)))
		})
	})

	Context("when the controller is unreachable", func() {
		It("should report an error outcome", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			addr := ln.Addr().String()
			ln.Close()

			sender, err := reporter.NewSender("http://"+addr, 500*time.Millisecond, nil)
			Expect(err).NotTo(HaveOccurred())

			result := sender.Send(ctx, report)
			Expect(result.Outcome).To(Equal(reporter.OutcomeError))
			Expect(result.StatusCode).To(Equal(0))
			Expect(result.Err).To(HaveOccurred())
		})
	})

	Context("with an injected client", func() {
		It("should surface client errors as error outcomes", func() {
			sender, err := reporter.NewSender("http://controller:3000", time.Second, doerFunc(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("transport exploded")
			}))
			Expect(err).NotTo(HaveOccurred())

			result := sender.Send(ctx, report)
			Expect(result.Outcome).To(Equal(reporter.OutcomeError))
			Expect(result.Err).To(MatchError("transport exploded"))
		})
	})
})

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

var _ = DescribeTable("Outcome.String",
	func(o reporter.Outcome, expected string) {
		Expect(o.String()).To(Equal(expected))
	},
	Entry("success", reporter.OutcomeSuccess, "success"),
	Entry("timeout", reporter.OutcomeTimeout, "timeout"),
	Entry("error", reporter.OutcomeError, "error"),
	Entry("unknown", reporter.Outcome(42), "unknown"),
)
