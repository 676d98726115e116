package services

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

const caseStudyPathMarker = "case-studies/"

type topicCategory struct {
	icon     string
	label    string
	keywords []string
}

var topicCategories = []topicCategory{
	{icon: "🧴", label: "Beauty & Skincare", keywords: []string{"beauty", "skin", "cosmetic"}},
	{icon: "🍦", label: "Food & Beverage", keywords: []string{"food", "ice cream", "beverage"}},
	{icon: "💪", label: "Health & Wellness", keywords: []string{"health", "wellness", "fitness"}},
	{icon: "📱", label: "Digital Marketing", keywords: []string{"social", "media", "digital"}},
}

var fallbackCategory = topicCategory{icon: "📊", label: "Business Analysis"}

// CaseStudyTopics derives one labelled topic per distinct case-study URL,
// e.g. ".../case-studies/ice-cream-trends/" becomes
// "🍦 Ice Cream Trends (Food & Beverage)". The result is sorted.
func CaseStudyTopics(docs []models.Document) []string {
	title := cases.Title(language.English)
	seen := map[string]struct{}{}
	topics := []string{}
	for _, d := range docs {
		i := strings.LastIndex(d.URL, caseStudyPathMarker)
		if i < 0 {
			continue
		}
		slug := d.URL[i+len(caseStudyPathMarker):]
		name := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(slug, "/", ""), "-", " "))
		if name == "" {
			continue
		}
		name = title.String(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cat := categorize(name)
		topics = append(topics, cat.icon+" "+name+" ("+cat.label+")")
	}
	sort.Strings(topics)
	return topics
}

func categorize(topic string) topicCategory {
	lower := strings.ToLower(topic)
	for _, c := range topicCategories {
		for _, k := range c.keywords {
			if strings.Contains(lower, k) {
				return c
			}
		}
	}
	return fallbackCategory
}
