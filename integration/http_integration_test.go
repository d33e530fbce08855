package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rainout-go/internal/domain"
)

// doRequest performs an HTTP request against the in-process server.
func doRequest(s *stack, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.server.App().Test(req, -1)
}

// parseResponse parses JSON response into target.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	var (
		s              *stack
		subscriptionID string
	)

	BeforeAll(func() {
		s = newStack()
		s.static.Set("t1", "20176", []domain.SourceEvent{
			{TenantID: "t1", Zip: "20176", FacilityID: "f1", SourceEventID: "ev-1", Status: "closed", UpdatedAt: 2000},
		})
	})

	AfterAll(func() {
		s.stop()
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			resp, err := doRequest(s, "GET", "/healthz", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("Subscriptions API", func() {
		It("should create a subscription", func() {
			payload := map[string]interface{}{
				"tenant_id": "t1",
				"user_id":   "coach-1",
				"zip":       "20176-1234",
			}

			resp, err := doRequest(s, "POST", "/v1/subscriptions", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].(map[string]interface{})
			Expect(ok).To(BeTrue())
			subscriptionID = data["id"].(string)
			Expect(data["tenant_id"]).To(Equal("t1"))
			Expect(data["zip"]).To(Equal("20176-1234"))
		})

		It("should reject a subscription without a usable zip", func() {
			payload := map[string]interface{}{
				"tenant_id": "t1",
				"user_id":   "coach-2",
				"zip":       "abc",
			}

			resp, err := doRequest(s, "POST", "/v1/subscriptions", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should list subscriptions for the tenant", func() {
			resp, err := doRequest(s, "GET", "/v1/subscriptions?tenant_id=t1", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(data).To(HaveLen(1))
		})
	})

	Describe("Runs API", func() {
		It("should execute a forced run and report the change", func() {
			resp, err := doRequest(s, "POST", "/v1/runs", map[string]interface{}{"force": true})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result struct {
				Data domain.RunResult `json:"data"`
			}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result.Data.SkippedReason).To(BeNil())
			Expect(result.Data.ProcessedTargets).To(Equal(1))
			Expect(result.Data.ChangedEvents).To(Equal(1))
		})

		It("should return the latest run", func() {
			resp, err := doRequest(s, "GET", "/v1/runs/latest", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result struct {
				Data domain.RunResult `json:"data"`
			}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result.Data.ChangedEvents).To(Equal(1))
		})

		It("should not notify again on a repeated run", func() {
			resp, err := doRequest(s, "POST", "/v1/runs", map[string]interface{}{"force": true})
			Expect(err).NotTo(HaveOccurred())

			var result struct {
				Data domain.RunResult `json:"data"`
			}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result.Data.ChangedEvents).To(Equal(0))
			Expect(s.notifier.chatCount()).To(Equal(1))
		})
	})

	Describe("History API", func() {
		It("should list the recorded rainout event", func() {
			resp, err := doRequest(s, "GET", "/v1/rainout-events?tenant_id=t1", nil)
			Expect(err).NotTo(HaveOccurred())

			var result struct {
				Data []domain.RainoutEvent `json:"data"`
			}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result.Data).To(HaveLen(1))
			Expect(result.Data[0].Status).To(Equal("closed"))
			Expect(result.Data[0].SubscriptionIDs).To(ConsistOf(subscriptionID))
		})

		It("should list one audit record per run", func() {
			resp, err := doRequest(s, "GET", "/v1/audit-logs?tenant_id=t1", nil)
			Expect(err).NotTo(HaveOccurred())

			var result struct {
				Data []domain.AuditRecord `json:"data"`
			}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result.Data).To(HaveLen(2))
			for _, r := range result.Data {
				Expect(r.Status).To(Equal(domain.AuditStatusOK))
			}
		})

		It("should expose the delivered in-app status", func() {
			Eventually(func() int {
				resp, err := doRequest(s, "GET", "/v1/in-app-status?tenant_id=t1", nil)
				if err != nil {
					return -1
				}
				var result struct {
					Data []domain.InAppStatus `json:"data"`
				}
				if err := parseResponse(resp, &result); err != nil {
					return -1
				}
				return len(result.Data)
			}).Should(Equal(1))
		})
	})

	Describe("Subscription removal", func() {
		It("should delete the subscription", func() {
			resp, err := doRequest(s, "DELETE", "/v1/subscriptions/"+subscriptionID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})

		It("should return 404 for the deleted subscription", func() {
			resp, err := doRequest(s, "GET", "/v1/subscriptions/"+subscriptionID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
