package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rainout-go/internal/domain"
	"rainout-go/internal/polling"
	"rainout-go/internal/source"
)

var _ = Describe("Rainout Polling Lifecycle", func() {
	var s *stack

	BeforeEach(func() {
		s = newStack()
	})

	AfterEach(func() {
		s.stop()
	})

	Context("when the same source data is polled twice", func() {
		BeforeEach(func() {
			s.subscribe("sub-1", "t1", "u1", "20176")
			s.subscribe("sub-2", "t1", "u2", "20176-1234")
			_ = s.state.SetState(context.Background(), "t1::ev-1", &domain.RainoutState{
				TenantID: "t1", Zip: "20176", FacilityID: "f1", SourceEventID: "ev-1",
				Status: "open", UpdatedAt: 1000,
			})
			s.static.Set("t1", "20176", []domain.SourceEvent{
				{TenantID: "t1", Zip: "20176", FacilityID: "f1", SourceEventID: "ev-1", Status: "closed", UpdatedAt: 2000},
			})
		})

		It("notifies once and leaves a single state entry", func() {
			first := s.run(boundary, polling.RunConfig{})
			Expect(first.SkippedReason).To(BeNil())
			Expect(first.ProcessedTargets).To(Equal(1))
			Expect(first.ChangedEvents).To(Equal(1))
			Expect(first.NotificationsSent).To(Equal(1))
			Expect(s.notifier.chatCount()).To(Equal(1))
			Expect(s.notifier.chats[0].Message).To(ContainSubstring("from open to closed"))
			Expect(s.notifier.chats[0].UserIDs).To(ConsistOf("u1", "u2"))

			second := s.run(boundary, polling.RunConfig{})
			Expect(second.ChangedEvents).To(Equal(0))
			Expect(second.SkippedUnchangedEvents).To(Equal(1))
			Expect(s.notifier.chatCount()).To(Equal(1))
			Expect(s.notifier.noChanges).To(HaveLen(1))

			Expect(s.state.Len()).To(Equal(1))
			Expect(s.idem.Keys()).To(HaveLen(1))
			Expect(s.events.Len()).To(Equal(1))

			state, err := s.state.GetState(context.Background(), "t1::ev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Status).To(Equal("closed"))
			Expect(state.UpdatedAt).To(Equal(int64(2000)))
		})

		It("projects the delivered in-app status onto the status board", func() {
			s.run(boundary, polling.RunConfig{})

			Eventually(func() []domain.InAppStatus {
				return s.board.List("t1")
			}).Should(HaveLen(1))
			Expect(s.board.List("t1")[0].Status).To(Equal("closed"))
		})
	})

	Context("when one target's upstream times out", func() {
		BeforeEach(func() {
			s.subscribe("a", "t1", "u1", "20175")
			s.subscribe("b", "t1", "u2", "20176")
			s.subscribe("c", "t2", "u3", "10001")
			s.failing["t1::20175"] = domain.NewCodedError(source.CodeTimeout, "timed out", context.DeadlineExceeded)
			s.static.Set("t1", "20176", []domain.SourceEvent{
				{TenantID: "t1", Zip: "20176", SourceEventID: "ev-a", Status: "closed", UpdatedAt: 10},
			})
			s.static.Set("t2", "10001", []domain.SourceEvent{
				{TenantID: "t2", Zip: "10001", SourceEventID: "ev-b", Status: "closed", UpdatedAt: 10},
			})
		})

		It("still processes and notifies the other targets", func() {
			result := s.run(boundary, polling.RunConfig{})

			Expect(result.FailedTargets).To(Equal(1))
			Expect(result.ErrorClasses).To(Equal([]string{"upstream-timeout"}))
			Expect(result.ProcessedTargets).To(Equal(2))
			Expect(s.notifier.chatsFor("t1", "20176")).To(Equal(1))
			Expect(s.notifier.chatsFor("t2", "10001")).To(Equal(1))

			records, err := s.audit.List(context.Background(), domain.AuditFilter{RunID: result.RunID})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))

			var failed []*domain.AuditRecord
			for _, r := range records {
				if r.Status == domain.AuditStatusError {
					failed = append(failed, r)
				}
			}
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Zip).To(Equal("20175"))
			Expect(failed[0].ErrorClass).To(Equal("upstream-timeout"))
		})
	})

	Context("when a tenant exceeds the zip guardrail", func() {
		BeforeEach(func() {
			s.subscribe("a", "t1", "u1", "30003")
			s.subscribe("b", "t1", "u1", "10001")
			s.subscribe("c", "t1", "u1", "20002")
		})

		It("polls only the first zips in plan order", func() {
			var polled []string
			result := s.run(boundary, polling.RunConfig{MaxZipsPerTenant: 2})

			Expect(result.ProcessedTargets).To(Equal(2))
			Expect(result.GuardrailSkippedTargets).To(Equal(1))

			records, _ := s.audit.List(context.Background(), domain.AuditFilter{RunID: result.RunID})
			for _, r := range records {
				polled = append(polled, r.Zip)
			}
			Expect(polled).To(ConsistOf("10001", "20002"))
		})
	})

	Context("when chat delivery is down", func() {
		BeforeEach(func() {
			s.subscribe("a", "t1", "u1", "20176")
			s.static.Set("t1", "20176", []domain.SourceEvent{
				{TenantID: "t1", Zip: "20176", SourceEventID: "ev-1", Status: "closed", UpdatedAt: 2000},
			})
			s.notifier.failChat(errChatDown)
		})

		It("does not advance state or idempotency", func() {
			result := s.run(boundary, polling.RunConfig{})

			Expect(result.FailedTargets).To(Equal(1))
			Expect(result.ErrorClasses).To(Equal([]string{"chat-down"}))
			Expect(s.state.Len()).To(Equal(0))
			Expect(s.idem.Keys()).To(BeEmpty())

			s.notifier.failChat(nil)
			retry := s.run(boundary, polling.RunConfig{})
			Expect(retry.ChangedEvents).To(Equal(1))
			Expect(s.state.Len()).To(Equal(1))
		})
	})

	Context("kill switch and scheduling boundary", func() {
		BeforeEach(func() {
			s.subscribe("a", "t1", "u1", "20176")
		})

		It("skips a disabled run before any work", func() {
			result := s.run(boundary, polling.RunConfig{Enabled: domain.BoolPtr(false), ForceRun: true})
			Expect(result.SkippedReason).NotTo(BeNil())
			Expect(*result.SkippedReason).To(Equal(domain.SkipFeatureDisabled))
			Expect(result.ProcessedTargets).To(BeZero())
		})

		It("skips off-boundary runs unless forced", func() {
			offBoundary := boundary.Add(7 * time.Minute)

			skipped := s.run(offBoundary, polling.RunConfig{})
			Expect(skipped.SkippedReason).NotTo(BeNil())
			Expect(*skipped.SkippedReason).To(Equal(domain.SkipNotOnBoundary))

			forced := s.run(offBoundary, polling.RunConfig{ForceRun: true})
			Expect(forced.SkippedReason).To(BeNil())
			Expect(forced.ProcessedTargets).To(Equal(1))
		})
	})
})
