package bridge

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type replayFile struct {
	Scenarios []replayScenario `yaml:"scenarios"`
}

type replayScenario struct {
	Name    string `yaml:"name"`
	Runtime struct {
		EmulateHardware   bool `yaml:"emulateHardware"`
		SkipFirmwareTouch bool `yaml:"skipFirmwareTouch"`
		ForceFirmwareFix  bool `yaml:"forceFirmwareFix"`
		SkipFlashClean    bool `yaml:"skipFlashClean"`
	} `yaml:"runtime"`
	Silent bool `yaml:"silent"`
	Steps  []struct {
		Send   string `yaml:"send"`
		Expect string `yaml:"expect"`
	} `yaml:"steps"`
}

func TestReplay(t *testing.T) {
	raw, err := os.ReadFile("testdata/replay.yaml")
	require.NoError(t, err)
	var file replayFile
	require.NoError(t, yaml.Unmarshal(raw, &file))
	require.NotEmpty(t, file.Scenarios)

	for _, sc := range file.Scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			h := newHarness(t, RuntimeConfig{
				EmulateHardware:   sc.Runtime.EmulateHardware,
				SkipFirmwareTouch: sc.Runtime.SkipFirmwareTouch,
				ForceFirmwareFix:  sc.Runtime.ForceFirmwareFix,
				SkipFlashClean:    sc.Runtime.SkipFlashClean,
			})
			h.sim.SetSilent(sc.Silent)

			var reqs, want [][]byte
			for _, st := range sc.Steps {
				reqs = append(reqs, []byte(st.Send))
				want = append(want, []byte(st.Expect))
			}
			got := h.exchange(t, reqs...)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i], got[i], "step %d: %q", i, sc.Steps[i].Send)
			}
		})
	}
}
