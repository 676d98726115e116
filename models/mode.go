package models

import (
	"fmt"
	"strings"
)

// AnalysisMode selects the prompt template and framing of an answer.
type AnalysisMode string

const (
	ModeGeneral     AnalysisMode = "general"
	ModeStrategic   AnalysisMode = "strategic"
	ModeTrends      AnalysisMode = "trends"
	ModeComparative AnalysisMode = "comparative"
	ModeExecutive   AnalysisMode = "executive"
)

// AllModes lists the modes in the order they are presented to users and to
// the router prompt.
var AllModes = []AnalysisMode{ModeGeneral, ModeStrategic, ModeTrends, ModeComparative, ModeExecutive}

// ParseAnalysisMode matches s against the five mode keywords, ignoring case
// and surrounding whitespace.
func ParseAnalysisMode(s string) (AnalysisMode, bool) {
	candidate := AnalysisMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range AllModes {
		if m == candidate {
			return m, true
		}
	}
	return "", false
}

func (m AnalysisMode) Valid() bool {
	_, ok := modeCatalog[m]
	return ok
}

// AgentType is the agent_type value reported to the UI.
func (m AnalysisMode) AgentType() string {
	return fmt.Sprintf("%s_analysis", m)
}

// Info returns the display metadata for m, falling back to general.
func (m AnalysisMode) Info() AnalysisTypeInfo {
	if info, ok := modeCatalog[m]; ok {
		return info
	}
	return modeCatalog[ModeGeneral]
}

// AnalysisTypeInfo is the UI-facing description of a mode. The UI renders it
// keyed by ID and never decides anything about what a mode means.
type AnalysisTypeInfo struct {
	ID          AnalysisMode `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Accent      string       `json:"accent"`
	Header      string       `json:"-"`
	Footer      string       `json:"-"`
}

var modeCatalog = map[AnalysisMode]AnalysisTypeInfo{
	ModeGeneral: {
		ID:          ModeGeneral,
		Name:        "General Business Analysis",
		Description: "Comprehensive analysis with insights and recommendations",
		Icon:        "💼",
		Accent:      "blue",
		Header:      "💼 **BUSINESS INTELLIGENCE ANALYSIS**",
	},
	ModeStrategic: {
		ID:          ModeStrategic,
		Name:        "Strategic Analysis",
		Description: "Long-term strategic planning and positioning insights",
		Icon:        "🎯",
		Accent:      "purple",
		Header:      "🎯 **STRATEGIC BUSINESS ANALYSIS**",
		Footer:      "*Strategic analysis focused on long-term positioning and competitive advantage*",
	},
	ModeTrends: {
		ID:          ModeTrends,
		Name:        "Trend Analysis",
		Description: "Market trends and future outlook analysis",
		Icon:        "📈",
		Accent:      "green",
		Header:      "📈 **TREND ANALYSIS & FUTURE OUTLOOK**",
		Footer:      "*Trend analysis with forward-looking insights and market evolution*",
	},
	ModeComparative: {
		ID:          ModeComparative,
		Name:        "Comparative Analysis",
		Description: "Side-by-side comparison with benchmarks",
		Icon:        "📊",
		Accent:      "orange",
		Header:      "📊 **COMPARATIVE MARKET ANALYSIS**",
		Footer:      "*Comparative analysis with performance benchmarks and market positioning*",
	},
	ModeExecutive: {
		ID:          ModeExecutive,
		Name:        "Executive Summary",
		Description: "C-level decision making insights",
		Icon:        "📋",
		Accent:      "red",
		Header:      "📋 **EXECUTIVE BUSINESS BRIEF**",
		Footer:      "*Executive summary designed for C-level decision making*",
	},
}

// AnalysisTypes returns the catalog in AllModes order.
func AnalysisTypes() []AnalysisTypeInfo {
	out := make([]AnalysisTypeInfo, 0, len(AllModes))
	for _, m := range AllModes {
		out = append(out, modeCatalog[m])
	}
	return out
}

// Confidence is a coarse evidence-strength label.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidences so that low < medium < high.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}
