package manikin

import "sync"

// LabPanelNames is the fixed catalogue of lab panel names a
// REQUEST=LABS response can select from, grounded on the original
// bridge's hardcoded panel list (TPMS.cpp) rather than anything
// discovered from a capability document.
var LabPanelNames = []string{
	"ALL",
	"POCT",
	"Hematology",
	"ABG",
	"VBG",
	"BMP",
	"CBC",
	"CMP",
}

// labPanelMembers maps every named panel other than "ALL" (which
// takes every physiology value) to the physiology value names it
// draws from. The membership follows clinical convention for what each
// named panel contains.
var labPanelMembers = map[string]map[string]bool{
	"POCT":       labSet("Glucose", "Lactate", "pH"),
	"Hematology": labSet("WBC", "RBC", "HGB", "HCT", "PLT"),
	"ABG":        labSet("pH", "PaCO2", "PaO2", "HCO3", "BE", "SaO2"),
	"VBG":        labSet("pH", "PvCO2", "PvO2", "HCO3"),
	"BMP":        labSet("Na", "K", "Cl", "CO2", "BUN", "Creatinine", "Glucose"),
	"CBC":        labSet("WBC", "RBC", "HGB", "HCT", "PLT"),
	"CMP": labSet("Na", "K", "Cl", "CO2", "BUN", "Creatinine", "Glucose", "Ca",
		"Albumin", "Protein", "ALT", "AST", "Bilirubin"),
}

func labSet(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// LabTable tracks the last numeric value seen for every physiology
// value name, grouped into the named panels it belongs to plus the
// catch-all "ALL" panel. Reset zeroes every reading rather than
// dropping it, so a panel that has seen a name keeps reporting it (at
// 0) after a reset.
type LabTable struct {
	mu     sync.RWMutex
	panels map[string]map[string]float64
}

// NewLabTable returns a table pre-seeded with every known panel name,
// empty of readings.
func NewLabTable() *LabTable {
	panels := make(map[string]map[string]float64, len(LabPanelNames))
	for _, name := range LabPanelNames {
		panels[name] = make(map[string]float64)
	}
	return &LabTable{panels: panels}
}

// Fold records value under name in the "ALL" panel and in every named
// panel name belongs to.
func (t *LabTable) Fold(name string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.panels["ALL"][name] = value
	for panel, members := range labPanelMembers {
		if members[name] {
			t.panels[panel][name] = value
		}
	}
}

// Reset zeroes every reading this table has folded in so far.
func (t *LabTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, readings := range t.panels {
		for name := range readings {
			readings[name] = 0
		}
	}
}

// Snapshot returns a copy of panel's name->value readings. An unknown
// panel name returns an empty, non-nil map.
func (t *LabTable) Snapshot(panel string) map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	src := t.panels[panel]
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
