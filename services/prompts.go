package services

import (
	"fmt"
	"strings"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// RouterPrompt asks the model to answer with exactly one mode keyword.
func RouterPrompt(question string) string {
	return fmt.Sprintf(`You are an expert request router. Classify the business question below into exactly one of these categories by its intent:

- general: general business intelligence, performance analysis, or when no other category fits.
- strategic: long-term planning, competitive advantage, market positioning, or business models.
- trends: market evolution, future predictions, emerging patterns, or change over time.
- comparative: comparing two or more brands, strategies, platforms, or performance metrics.
- executive: concise high-level summaries, financial implications, or C-level decision support.

Answer with ONLY the category keyword, in lowercase, with no explanation and no punctuation.

Question: %q
Category:`, question)
}

type analysisTemplate struct {
	role      string
	dataLabel string
	askLabel  string
	sections  []string
	emphasis  string
}

var analysisTemplates = map[models.AnalysisMode]analysisTemplate{
	models.ModeGeneral: {
		role:      "You are an elite ConvoTrack business intelligence specialist with expertise in consumer psychology, market analysis and strategic business insight. Turn raw case study data into actionable intelligence.",
		dataLabel: "CASE STUDY INTELLIGENCE",
		askLabel:  "BUSINESS INQUIRY",
		sections: []string{
			"🎯 **Executive Summary**: the key takeaway in 2-3 sentences",
			"📊 **Data-Driven Insights**: specific findings with engagement rates, conversion rates, growth figures and market share where the evidence has them",
			"🚀 **Strategic Implications**: what this means for business strategy and market positioning",
			"💡 **Actionable Recommendations**: 3-4 specific, implementable actions",
			"🔮 **Future Outlook**: trends and predictions grounded in the data",
			"⚠️ **Risk Considerations**: challenges and limitations to keep in mind",
		},
		emphasis: `Quote numbers exactly as they appear in the sources (e.g. "Brand A achieved 85% engagement vs Brand B's 72%") and back every claim with a cited source.`,
	},
	models.ModeStrategic: {
		role:      "You are a senior business strategist specializing in long-term planning and market positioning.",
		dataLabel: "STRATEGIC INTELLIGENCE DATA",
		askLabel:  "STRATEGIC INQUIRY",
		sections: []string{
			"🎯 **Strategic Position Assessment**: current market position and competitive standing",
			"🏗️ **Strategic Framework**: business model, revenue streams and cost structure",
			"🎪 **Market Opportunity Matrix**: opportunities with their size and investment needs",
			"⚔️ **Competitive Advantage Analysis**: unique value propositions with quantified advantages",
			"🚀 **Strategic Roadmap**: a 3-phase plan with timeline, resources and milestones",
			"⚠️ **Strategic Risk Matrix**: risks with likelihood and impact",
			"📈 **Success Metrics & KPIs**: measurable outcomes and benchmarks",
		},
		emphasis: "Focus on long-term value creation, sustainable competitive advantage and scalable business models.",
	},
	models.ModeTrends: {
		role:      "You are a trend forecasting expert specializing in consumer behavior and market evolution.",
		dataLabel: "TREND INTELLIGENCE DATA",
		askLabel:  "TREND INQUIRY",
		sections: []string{
			"📈 **Current State**: what the data shows today, with metrics",
			"🔄 **Evolution Pattern**: how things changed over time, with growth rates",
			"🚀 **Emerging Trends**: new patterns with adoption and penetration data",
			"📊 **Trend Drivers**: the consumer, technology or market forces behind the change",
			"🎯 **Business Impact**: how these trends affect strategy",
			"🔮 **Future Projections**: where the trends are heading in the next 1-2 years",
			"💰 **Revenue Opportunities**: how a business can capitalize on them",
		},
		emphasis: `Include growth rates, adoption percentages and year-over-year comparisons (e.g. "Instagram engagement grew 35% while TikTok grew 67%").`,
	},
	models.ModeComparative: {
		role:      "You are a comparative business analyst specializing in market intelligence and competitive analysis.",
		dataLabel: "COMPARATIVE INTELLIGENCE DATA",
		askLabel:  "COMPARISON REQUEST",
		sections: []string{
			"🔍 **Comparison Framework**: the criteria and baseline metrics",
			"📊 **Side-by-Side Analysis**: each option against the same metrics",
			"🏆 **Leader Analysis**: which option performs better and by how much",
			"📈 **Performance Gaps**: differences as exact percentages or ratios",
			"🎯 **Strategic Recommendations**: which approach to adopt and the expected improvement",
			"⚖️ **Trade-offs**: pros and cons of each option",
		},
		emphasis: `Present comparisons as aligned figures (e.g. "Brand A: 67%, Brand B: 54%, industry average: 45%").`,
	},
	models.ModeExecutive: {
		role:      "You are a C-level executive consultant specializing in board-level business summaries.",
		dataLabel: "EXECUTIVE INTELLIGENCE DATA",
		askLabel:  "EXECUTIVE INQUIRY",
		sections: []string{
			"📋 **Executive Summary**: the critical insight in 3-4 sentences",
			"💼 **Business Impact**: revenue and cost implications",
			"🎯 **Key Performance Indicators**: the 3-4 metrics that matter most",
			"💰 **Financial Implications**: opportunities, savings and investment needs",
			"🚨 **Risk Assessment**: top risks and mitigations",
			"📊 **Decision Points**: clear recommendations with expected outcomes",
		},
		emphasis: "Be brief. Use bullet points and lead with the decisions an executive has to make.",
	},
}

const noEvidenceInstruction = "No case study evidence was retrieved for this question. Say so plainly at the start of your answer, answer only from general business knowledge, do not invent figures and do not cite sources."

// BuildAnalysisPrompt renders the template for mode around the question and
// the retrieved evidence. Unknown modes use the general template.
func BuildAnalysisPrompt(mode models.AnalysisMode, question string, chunks []models.ScoredChunk) string {
	tpl, ok := analysisTemplates[mode]
	if !ok {
		tpl = analysisTemplates[models.ModeGeneral]
	}

	var b strings.Builder
	b.WriteString(tpl.role)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s:\n", tpl.dataLabel)
	if len(chunks) == 0 {
		b.WriteString("(none)\n\n")
		b.WriteString(noEvidenceInstruction)
		b.WriteString("\n\n")
	} else {
		b.WriteString(formatEvidence(chunks))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s: %s\n\n", tpl.askLabel, question)
	b.WriteString("Structure your answer with these sections:\n")
	for _, s := range tpl.sections {
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(tpl.emphasis)
	if len(chunks) > 0 {
		b.WriteString("\nRefer to evidence as [Source N]. Use only facts found in the sources above.")
	}
	return b.String()
}

func formatEvidence(chunks []models.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[Source %d] (article %s", i+1, c.Chunk.DocumentID)
		if c.Chunk.URL != "" {
			fmt.Fprintf(&b, ", %s", c.Chunk.URL)
		}
		b.WriteString(")\n")
		b.WriteString(strings.TrimSpace(c.Chunk.Text))
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}
