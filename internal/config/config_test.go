package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mzeidler/mbd/internal/config"
)

var _ = Describe("Config", func() {
	Describe("defaults", func() {
		It("is a valid pendulum run", func() {
			cfg := config.DefaultConfig()
			Expect(cfg.Model).To(Equal("pendulum"))
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("loading from YAML", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("round-trips through Save and Load", func() {
			cfg := config.DefaultConfig()
			cfg.Model = "fourbar"
			cfg.Dt = 0.002
			cfg.CorrectionPasses = 3
			cfg.Params["coupler"] = 0.9

			path := filepath.Join(dir, "run.yaml")
			Expect(config.Save(path, cfg)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Model).To(Equal("fourbar"))
			Expect(loaded.Dt).To(Equal(0.002))
			Expect(loaded.CorrectionPasses).To(Equal(3))
			Expect(loaded.Params).To(HaveKeyWithValue("coupler", 0.9))
		})

		It("fills unspecified fields with defaults", func() {
			path := filepath.Join(dir, "partial.yaml")
			Expect(os.WriteFile(path, []byte("model: top\n"), 0644)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Model).To(Equal("top"))
			Expect(loaded.Dt).To(Equal(config.DefaultDt))
			Expect(loaded.Duration).To(Equal(config.DefaultDuration))
		})

		It("rejects invalid documents", func() {
			path := filepath.Join(dir, "bad.yaml")
			Expect(os.WriteFile(path, []byte("model: top\ndt: -1\n"), 0644)).To(Succeed())

			_, err := config.Load(path)
			Expect(err).To(MatchError(ContainSubstring("dt must be positive")))
		})
	})

	Describe("Validate", func() {
		It("rejects a missing model", func() {
			cfg := config.DefaultConfig()
			cfg.Model = ""
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("rejects a negative duration", func() {
			cfg := config.DefaultConfig()
			cfg.Duration = -5
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	Describe("Merge", func() {
		It("overlays only the fields the other config sets", func() {
			base := config.DefaultConfig()
			base.Params["theta"] = 0.5

			merged := base.Merge(&config.Config{
				Dt:     0.001,
				Params: map[string]float64{"omega": 2.0},
			})

			Expect(merged.Model).To(Equal("pendulum"))
			Expect(merged.Dt).To(Equal(0.001))
			Expect(merged.Duration).To(Equal(base.Duration))
			Expect(merged.Params).To(HaveKeyWithValue("theta", 0.5))
			Expect(merged.Params).To(HaveKeyWithValue("omega", 2.0))
		})

		It("does not mutate the receiver", func() {
			base := config.DefaultConfig()
			_ = base.Merge(&config.Config{Params: map[string]float64{"x": 1}})
			Expect(base.Params).NotTo(HaveKey("x"))
		})
	})

	Describe("presets", func() {
		It("resolves known presets", func() {
			cfg := config.GetPreset("fourbar", "tight")
			Expect(cfg).NotTo(BeNil())
			Expect(cfg.CorrectionPasses).To(Equal(3))
		})

		It("returns nil for unknown names", func() {
			Expect(config.GetPreset("pendulum", "nope")).To(BeNil())
			Expect(config.GetPreset("nope", "small")).To(BeNil())
		})

		It("lists presets per model", func() {
			Expect(config.ListPresets("pendulum")).To(ContainElement("spinning"))
			Expect(config.ListPresets("nope")).To(BeNil())
		})

		It("ships only valid presets", func() {
			for model, presets := range config.Presets {
				for name, cfg := range presets {
					Expect(cfg.Validate()).To(Succeed(), "%s/%s", model, name)
				}
			}
		})
	})
})
