package cmd

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cmd Suite")
}

var _ = Describe("loadConfig", func() {
	It("loads the shipped development config", func() {
		cfg, err := loadConfig("..")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Processor.Provider).To(Equal("sandbox"))
		Expect(cfg.Server.Origins()).To(ConsistOf("http://localhost:3000", "http://localhost:5173"))

		rate, err := cfg.Fees.Rate()
		Expect(err).ToNot(HaveOccurred())
		Expect(rate.String()).To(Equal("5"))
	})

	It("lets ENV_ variables override the file", func() {
		GinkgoT().Setenv("ENV_FEES_PLATFORM_FEE_PERCENT", "7.5")
		GinkgoT().Setenv("ENV_HTTP_SERVER_PORT", "9090")

		cfg, err := loadConfig("..")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Fees.PlatformFeePercent).To(Equal("7.5"))
		Expect(cfg.Server.Port).To(Equal(9090))
	})

	It("rejects an invalid config", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
http_server:
  port: 8080
database:
  source: postgres://localhost/db
  max_open_conns: 2
  max_idle_conns: 5
security:
  jwt_secret: short
processor:
  provider: paypal
  webhook_secret: whsec
fees:
  platform_fee_percent: "120"
`), 0o600)).To(Succeed())

		_, err := loadConfig(dir)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("max_idle_conns"))
		Expect(err.Error()).To(ContainSubstring("jwt_secret"))
		Expect(err.Error()).To(ContainSubstring("platform_fee_percent"))
	})

	It("fails when no config file exists", func() {
		_, err := loadConfig(GinkgoT().TempDir())
		Expect(err).To(MatchError(ContainSubstring("error reading config")))
	})
})

var _ = Describe("migrationCommand", func() {
	AfterEach(func() {
		migrateRollback, migrateStatus = false, false
	})

	It("migrates up by default", func() {
		Expect(migrationCommand()).To(Equal("up"))
	})

	It("rolls back the latest version", func() {
		migrateRollback = true
		Expect(migrationCommand()).To(Equal("down"))
	})

	It("prefers status over rollback", func() {
		migrateRollback, migrateStatus = true, true
		Expect(migrationCommand()).To(Equal("status"))
	})
})
