package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/mzeidler/mbd/internal/sim"
)

type ExportData struct {
	Model      string             `json:"model"`
	Integrator string             `json:"integrator"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	NQ         int                `json:"nq"`
	Steps      int                `json:"steps"`
	Times      []float64          `json:"times"`
	States     [][]float64        `json:"states"`
	Forces     [][]float64        `json:"forces"`
	Metrics    map[string]float64 `json:"metrics"`
}

func newExportData(model, integrator string, dt, duration float64, nq int, result *sim.Result) ExportData {
	data := ExportData{
		Model:      model,
		Integrator: integrator,
		Dt:         dt,
		Duration:   duration,
		NQ:         nq,
		Steps:      len(result.Times),
		Times:      result.Times,
		States:     make([][]float64, len(result.States)),
		Forces:     make([][]float64, len(result.Controls)),
		Metrics:    result.Metrics,
	}

	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Forces[i] = c
	}

	return data
}

func exportTo(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, model, integrator string, dt, duration float64, nq int, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return exportTo(file, newExportData(model, integrator, dt, duration, nq, result))
}

func ExportJSONStdout(model, integrator string, dt, duration float64, nq int, result *sim.Result) error {
	return exportTo(os.Stdout, newExportData(model, integrator, dt, duration, nq, result))
}
