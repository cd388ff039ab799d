package config_test

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arrowlabs/rrlsched/internal/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Load", func() {
	BeforeEach(func() {
		os.Unsetenv("RRLSCHED_SERVER_HTTP_PORT")
		os.Unsetenv("RRLSCHED_SCHEDULER_MAX_ATTEMPTS")
	})

	AfterEach(func() {
		os.Unsetenv("RRLSCHED_SERVER_HTTP_PORT")
		os.Unsetenv("RRLSCHED_SCHEDULER_MAX_ATTEMPTS")
	})

	It("populates struct-tag defaults when no env vars are set", func() {
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.HTTPPort).To(Equal(8000))
		Expect(cfg.Scheduler.MaxAttempts).To(Equal(3))
	})

	It("overrides defaults from RRLSCHED_-prefixed env vars", func() {
		os.Setenv("RRLSCHED_SERVER_HTTP_PORT", "9100")
		os.Setenv("RRLSCHED_SCHEDULER_MAX_ATTEMPTS", "7")

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.HTTPPort).To(Equal(9100))
		Expect(cfg.Scheduler.MaxAttempts).To(Equal(7))
	})

	It("translates into a scheduler.Config via ToSchedulerConfig", func() {
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())

		schedCfg, err := cfg.ToSchedulerConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(schedCfg.MaxAttempts).To(Equal(cfg.Scheduler.MaxAttempts))
		Expect(schedCfg.RequestProcessingThreadPoolConfig.Max).To(Equal(cfg.Scheduler.NumWorkers))
	})
})
