package config

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 20.0,
			Params: map[string]float64{"theta": 0.2},
		},
		"large": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 20.0,
			Params: map[string]float64{"theta": 2.5},
		},
		"spinning": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 30.0,
			Params: map[string]float64{"theta": 0.1, "omega": 8.0},
		},
	},
	"double_pendulum": {
		"chaos": {
			Model: "double_pendulum", Integrator: "rk4", Dt: 0.005, Duration: 60.0,
			Params: map[string]float64{"theta": 3.0, "theta2": 3.0},
		},
		"gentle": {
			Model: "double_pendulum", Integrator: "rk4", Dt: 0.01, Duration: 30.0,
			Params: map[string]float64{"theta": 0.3, "theta2": 0.3},
		},
	},
	"cart_pendulum": {
		"swing": {
			Model: "cart_pendulum", Integrator: "rk4", Dt: 0.005, Duration: 20.0,
			Params: map[string]float64{"theta": 0.8},
		},
		"heavy_cart": {
			Model: "cart_pendulum", Integrator: "rk4", Dt: 0.005, Duration: 20.0,
			Params: map[string]float64{"theta": 0.8, "cart_mass": 50.0},
		},
	},
	"top": {
		"fast": {
			Model: "top", Integrator: "rk45", Dt: 0.001, Duration: 5.0,
			Params: map[string]float64{"spin": 200.0, "tilt": 0.15},
		},
		"lazy": {
			Model: "top", Integrator: "rk45", Dt: 0.001, Duration: 5.0,
			Params: map[string]float64{"spin": 40.0, "tilt": 0.4},
		},
	},
	"projectile": {
		"lob": {
			Model: "projectile", Integrator: "rk4", Dt: 0.01, Duration: 2.0,
			Params: map[string]float64{"vx": 2.0, "vy": 8.0},
		},
	},
	"fourbar": {
		"swing": {
			Model: "fourbar", Integrator: "rk4", Dt: 0.002, Duration: 10.0,
			Params: map[string]float64{"theta": 0.4, "theta2": -0.8},
		},
		"tight": {
			Model: "fourbar", Integrator: "rk4", Dt: 0.001, Duration: 10.0,
			CorrectionPasses: 3,
			Params:           map[string]float64{"coupler": 0.9},
		},
	},
}

func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}
